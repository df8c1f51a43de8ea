package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the proxy list API key",
	Long: `Manage the stored proxy list API key.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

A key given with --api-key or IMGSCRAPER_API_KEY always wins over a stored one.`,
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key [name]",
	Short: "Store an API key securely",
	Long: `Store a proxy list API key in the system keychain or encrypted file.

The key is read from the terminal without echo. When stdin is not a terminal
it is read from the first line of input. Without a name the key is stored as
the default key.`,
	Example: `  # Interactive
  imgscraper auth set-key

  # From a pipe
  echo "$WEBSHARE_KEY" | imgscraper auth set-key`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		return runSetKey(manager, nameArg(args), os.Stdin, cmd.OutOrStdout())
	},
}

var deleteKeyCmd = &cobra.Command{
	Use:   "delete-key [name]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		name := nameArg(args)
		if err := manager.Delete(name); err != nil {
			return err
		}
		ui.PrintSuccess("API key removed: " + name)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		return runStatus(manager, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setKeyCmd)
	authCmd.AddCommand(deleteKeyCmd)
	authCmd.AddCommand(statusCmd)
}

// keyManager is the part of auth.Manager the commands use
type keyManager interface {
	Store(key *auth.APIKey) error
	List() ([]*auth.APIKey, error)
}

func nameArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultName
}

func runSetKey(manager keyManager, name string, in *os.File, out io.Writer) error {
	auth.ShowAPIKeyGuide(out)
	fmt.Fprintf(out, "\nAPI key for %q: ", name)

	key, err := readSecret(in)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", auth.ErrInvalidKey)
	}

	if err := manager.Store(&auth.APIKey{Name: name, Key: key, LastModified: time.Now()}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("API key stored: %s (%s)", name, auth.MaskKey(key)))
	return nil
}

func runStatus(manager keyManager, out io.Writer) error {
	keys, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}
	if len(keys) == 0 {
		ui.PrintInfo("No stored API keys", "Use 'imgscraper auth set-key' to add one")
		return nil
	}

	ui.PrintHighlight("Stored API Keys")
	for _, k := range keys {
		fmt.Fprintf(out, "  %-12s %s  (modified %s)\n",
			k.Name, auth.MaskKey(k.Key), k.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readSecret reads a line without echo when in is a terminal
func readSecret(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		secret, err := term.ReadPassword(int(in.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
