// File: cmd/list.go
package cmd

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"krypton.module/internal/colors"
	"krypton.module/internal/config"
	"krypton.module/internal/constants"
	"krypton.module/internal/keyring"
)

var listJson bool

type listedKey struct {
	keyring.Entry
	Fingerprint string `json:"fingerprint,omitempty"`
}

// fingerprint returns the SSH fingerprint of an ssh-ed25519 entry.
func fingerprint(entry keyring.Entry) string {
	if entry.Kind != constants.KindSSHEd25519 {
		return ""
	}
	pub, err := sshPublicKey(entry)
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

func sshPublicKey(entry keyring.Entry) (ssh.PublicKey, error) {
	raw, err := entry.PublicBytes()
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("stored public key has %d bytes", len(raw))
	}
	return ssh.NewPublicKey(ed25519.PublicKey(raw))
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Shows the keys stored in the keyring.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		entries := s.ring.List()
		if len(entries) == 0 {
			info("Keyring '%s' is empty.", config.Cfg.KeyringFile)
			return nil
		}

		if listJson {
			out := make([]listedKey, 0, len(entries))
			for _, e := range entries {
				out = append(out, listedKey{Entry: e, Fingerprint: fingerprint(e)})
			}
			jsonData, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to generate JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		}

		fmt.Printf("Keys in '%s':\n", config.Cfg.KeyringFile)
		for _, e := range entries {
			line := fmt.Sprintf("- %s (%s, created %s)", colors.SafeColor(e.Name, colors.Bold), e.Kind, e.Created.Format("2006-01-02"))
			if fp := fingerprint(e); fp != "" {
				line += " " + colors.SafeColor(fp, colors.Dim)
			}
			if e.PeerKey != "" {
				line += " " + colors.SafeColor("[paired]", colors.Cyan)
			}
			if e.Comment != "" {
				line += " " + e.Comment
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJson, "json", false, "Output the list in JSON format.")
}
