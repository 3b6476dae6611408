package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jobpilot/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Store credentials in the OS keychain",
}

var setGeminiCmd = &cobra.Command{
	Use:   "set-gemini",
	Short: "Store the Gemini API key",
	RunE: func(_ *cobra.Command, _ []string) error {
		return promptAndStore("Gemini API key", secrets.AccountGemini)
	},
}

var setIMAPCmd = &cobra.Command{
	Use:   "set-imap <username> <host>",
	Short: "Store the IMAP password for username at host",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return promptAndStore("IMAP password", secrets.IMAPAccount(args[0], args[1]))
	},
}

var setSMTPCmd = &cobra.Command{
	Use:   "set-smtp <from-address> <host>",
	Short: "Store the SMTP password for from-address at host",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return promptAndStore("SMTP password", secrets.SMTPAccount(args[0], args[1]))
	},
}

func init() {
	secretsCmd.AddCommand(setGeminiCmd, setIMAPCmd, setSMTPCmd)
	rootCmd.AddCommand(secretsCmd)
}

func promptAndStore(label, account string) error {
	fmt.Printf("%s: ", label)
	value, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading %s: %w", label, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%s must not be empty", label)
	}
	if err := secrets.Set(account, value); err != nil {
		return err
	}
	fmt.Println("stored in keychain")
	return nil
}
