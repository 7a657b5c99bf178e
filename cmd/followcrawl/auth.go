package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"followcrawl/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API credentials securely.

Bearer tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - FOLLOWCRAWL_BEARER_TOKEN environment variable (read-only)

Tokens never appear in logs or in the crawl store.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store a bearer token securely",
	Long: `Store an API bearer token under a label ("default" when omitted).

The token is read from the terminal without echo. Obtain one from the
developer portal of the API you are crawling.`,
	Example: `  # Store the default token
  followcrawl auth login

  # Store a token under a label
  followcrawl auth login research`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove a stored token",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens",
	Long:  `List stored credential labels with masked token values.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	label := "default"
	if len(args) > 0 {
		label = args[0]
	}

	if existing, _ := manager.Retrieve(label); existing != nil {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("Credential %q already exists. Replace it? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Print("Bearer token (input hidden): ")
	token, err := readSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read token:", err)
		os.Exit(1)
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "a token is required")
		os.Exit(1)
	}

	if err := manager.Store(&auth.Account{Label: label, BearerToken: token}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("Stored credential %q (%s)\n", label, auth.MaskToken(token))
	fmt.Println("\nStart a crawl with:")
	fmt.Printf("  followcrawl crawl <screen_name>")
	if label != "default" {
		fmt.Printf(" --account %s", label)
	}
	fmt.Println()
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	label := "default"
	if len(args) > 0 {
		label = args[0]
	}

	if err := manager.Delete(label); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove credential:", err)
		os.Exit(1)
	}
	fmt.Printf("Removed credential %q\n", label)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list credentials:", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored credentials. Use 'followcrawl auth login' to add one.")
		return
	}

	for _, account := range accounts {
		fmt.Printf("%s\n", account.Label)
		fmt.Printf("  token:    %s\n", auth.MaskToken(account.BearerToken))
		fmt.Printf("  modified: %s\n", account.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// readSecret reads a line from stdin without echo when stdin is a terminal.
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
