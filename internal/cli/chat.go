package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ragengine/config"
	"ragengine/internal/domain"
	"ragengine/internal/port"
	"ragengine/internal/usecase"
)

var chatTopK int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Converse with the index using session memory",
	Long: `Start an interactive session. Each answer is grounded on retrieved
chunks and the recent conversation; the exchange is recorded so
follow-up questions can refer back to it.

Slash commands inside the session:
  /new            start a fresh session
  /history        show the current session's turns
  /sessions       list active sessions
  /delete <id>    delete a session
  /quit           exit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "number of chunks to retrieve per question (default from config)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dataDir := GetRootDir()

	if _, err := os.Stat(config.SnapshotPath(dataDir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'ragengine ingest' first")
	}

	uc, sessions, err := newQueryUseCase(cfg, dataDir)
	if err != nil {
		return err
	}

	sessionID, err := sessions.Create(nil)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s started. Type a question, or /quit to exit.\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sessions.Sweep(time.Now())

		if strings.HasPrefix(line, "/") {
			done, newID := handleSlashCommand(line, sessions, sessionID)
			if done {
				return nil
			}
			sessionID = newID
			continue
		}

		result, err := uc.Query(cmd.Context(), usecase.QueryRequest{
			Question:  line,
			TopK:      chatTopK,
			SessionID: sessionID,
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Printf("\n%s\n", result.Answer)
		if len(result.Sources) > 0 {
			fmt.Printf("\nSources:")
			for i, s := range result.Sources {
				fmt.Printf(" [%d] %v", i+1, s.Metadata[domain.MetaSource])
			}
			fmt.Println()
		}
		fmt.Println()
	}

	return scanner.Err()
}

// handleSlashCommand executes a chat command. It reports whether the
// REPL should exit and returns the (possibly replaced) session id.
func handleSlashCommand(line string, sessions port.SessionStore, current string) (bool, string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, current

	case "/new":
		id, err := sessions.Create(nil)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false, current
		}
		fmt.Printf("Session %s started.\n", id)
		return false, id

	case "/history":
		info, err := sessions.Get(current)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false, current
		}
		if len(info.History) == 0 {
			fmt.Println("No turns yet.")
			return false, current
		}
		for _, t := range info.History {
			fmt.Printf("%s [%s] %s\n", t.Timestamp.Format("15:04:05"), t.Role, t.Content)
		}
		return false, current

	case "/sessions":
		fmt.Printf("%d active session(s); current is %s.\n", sessions.Count(), current)
		return false, current

	case "/delete":
		if len(fields) < 2 {
			fmt.Println("usage: /delete <session-id>")
			return false, current
		}
		if err := sessions.Delete(fields[1]); err != nil {
			fmt.Printf("error: %v\n", err)
			return false, current
		}
		fmt.Printf("Session %s deleted.\n", fields[1])
		if fields[1] == current {
			id, err := sessions.Create(nil)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				return true, current
			}
			fmt.Printf("Session %s started.\n", id)
			return false, id
		}
		return false, current

	default:
		fmt.Printf("unknown command: %s\n", fields[0])
		return false, current
	}
}
