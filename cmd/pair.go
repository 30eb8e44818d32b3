// File: cmd/pair.go
package cmd

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"krypton.module/internal/audit"
	"krypton.module/internal/constants"
	"krypton.module/internal/errors"
	"krypton.module/internal/keyring"
	"krypton.module/internal/keys"
	"krypton.module/internal/pairing"
	"krypton.module/internal/security"
)

var pairName string

// pairReply is sealed to the workstation so it can confirm the pairing.
type pairReply struct {
	Name      string `json:"n"`
	PublicKey string `json:"pk"`
}

type pairResult struct {
	Name      string `json:"name"`
	Queue     string `json:"queue"`
	PublicKey string `json:"public_key"`
	Reply     string `json:"reply"`
}

var pairCmd = &cobra.Command{
	Use:   "pair [REQUEST]",
	Short: "Pairs with a workstation and stores a nacl-box key for it.",
	Long: `Reads a pairing request of the form {"n": name, "pk": base64} from
the argument or stdin, generates a nacl-box key bound to the workstation's
public key and stores it. The result names the queue the workstation
listens on and carries a reply sealed to it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		var raw []byte
		if len(args) == 1 {
			raw = []byte(args[0])
		} else {
			data, err := readPublicInput("-")
			if err != nil {
				return err
			}
			raw = data
		}

		req, workstationKey, err := pairing.ParseRequest(raw)
		if err != nil {
			return err
		}

		kp, err := keys.GenerateBoxKeyPair(rand.Reader, resting())
		if err != nil {
			return err
		}
		p, err := pairing.New(req.Name, workstationKey, kp)
		if err != nil {
			kp.Release()
			return err
		}
		p = security.Track(p, "pairing key")
		defer security.Release(p)

		name := pairName
		if name == "" {
			name = p.DisplayName()
		}
		if err := keyring.ValidateName(name); err != nil {
			return err
		}
		if _, err := s.ring.Get(name); err == nil {
			return errors.NewEntryExistsError(name)
		}

		seed, err := p.KeyPair().Seed()
		if err != nil {
			return err
		}
		defer seed.Release()

		entry := keyring.Entry{
			Name:      name,
			Kind:      constants.KindNaClBox,
			PublicKey: pairing.ToBase64(p.PublicKey()[:]),
			PeerKey:   pairing.ToBase64(p.WorkstationPublicKey[:]),
			Comment:   "paired with " + p.DisplayName(),
		}
		if err := s.ring.Put(entry, seed); err != nil {
			return err
		}
		if err := s.save(); err != nil {
			return err
		}

		reply, err := p.SealBase64(pairReply{Name: name, PublicKey: entry.PublicKey})
		if err != nil {
			return err
		}

		audit.Logger.Info("Workstation paired",
			slog.String("name", name),
			slog.String("workstation", p.DisplayName()),
			slog.String("queue", p.Queue()))
		success("Paired with '%s' as key '%s'.", p.DisplayName(), name)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pairResult{
			Name:      name,
			Queue:     p.Queue(),
			PublicKey: entry.PublicKey,
			Reply:     reply,
		}); err != nil {
			return fmt.Errorf("failed to write pairing result: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)
	pairCmd.Flags().StringVar(&pairName, "name", "", "Name of the stored key (default: workstation name).")
}
