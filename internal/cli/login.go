package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nvoronin/periscope/internal/client"
)

var (
	loginRegister bool
	loginName     string
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in to the periscope server",
	Long: `Log in to the periscope server and store the session token locally.

The password is read from stdin. Use --register to create a new account
instead of logging into an existing one.

Examples:
  periscope login alice@example.com
  periscope login alice@example.com --register --name "Alice"`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := clearCredentials(credentialsPath()); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginRegister, "register", false, "create a new account")
	loginCmd.Flags().StringVar(&loginName, "name", "", "display name for --register")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := args[0]
	ctx := context.Background()

	fmt.Print("Password: ")
	password, err := promptPassword(os.Stdin)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	var result *client.LoginResult
	if loginRegister {
		result, err = apiClient.Register(ctx, email, password, loginName)
	} else {
		result, err = apiClient.Login(ctx, email, password)
	}
	if err != nil {
		return err
	}

	err = saveCredentials(credentialsPath(), credentials{
		Email: result.User.Email,
		Token: result.Token,
	})
	if err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	fmt.Printf("Logged in as %s\n", result.User.Email)
	return nil
}

// promptPassword reads a password without echoing it. When in is not a
// terminal (piped input, tests), it falls back to reading one line.
func promptPassword(in *os.File) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
