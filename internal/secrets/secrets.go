package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the engine's secrets in the OS keychain.
const KeyringService = "jobpilot"

const (
	AccountGemini = "jobpilot:gemini:api-key"
)

// IMAPAccount derives the keychain account name for a mailbox login.
func IMAPAccount(username, host string) string {
	return fmt.Sprintf("jobpilot:imap:%s@%s", username, host)
}

// SMTPAccount derives the keychain account name for an SMTP login.
func SMTPAccount(username, host string) string {
	return fmt.Sprintf("jobpilot:smtp:%s@%s", username, host)
}

// Get reads a secret, rejecting empty values.
func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("secret %s is empty", account)
	}
	return v, nil
}

// Set stores a secret.
func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

// Delete removes a secret.
func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
