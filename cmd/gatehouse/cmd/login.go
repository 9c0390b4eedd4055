package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/session"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store a session locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(cmd, args[0], (*session.Manager).Login)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account and log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuth(cmd, args[0], (*session.Manager).Register)
	},
}

func runAuth(cmd *cobra.Command, email string, op func(*session.Manager, context.Context, session.Credentials) error) error {
	password, err := promptPassword()
	if err != nil {
		return err
	}

	mgr, cleanup, err := newManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := op(mgr, cmd.Context(), session.Credentials{Email: email, Password: password}); err != nil {
		return err
	}
	printSnapshot(mgr.Current())
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
}
