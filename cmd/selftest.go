// File: cmd/selftest.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"krypton.module/internal/colors"
	"krypton.module/internal/errors"
	"krypton.module/internal/securedata"
)

type selfCheck struct {
	name string
	run  func() error
}

func sequenceFill(data []byte) error {
	for i := range data {
		data[i] = byte(i)
	}
	return nil
}

func expectCode(err error, code errors.ErrorCode) error {
	if err == nil {
		return fmt.Errorf("expected %s, got success", code)
	}
	if !errors.IsCode(err, code) {
		return fmt.Errorf("expected %s, got %v", code, err)
	}
	return nil
}

var selfChecks = []selfCheck{
	{"xor inside a read-write window", func() error {
		b, err := securedata.New(16, securedata.ReadOnly, sequenceFill)
		if err != nil {
			return err
		}
		defer b.Release()

		if err := b.ReadWrite(func(data []byte) error {
			for i := range data {
				data[i] ^= 0xFF
			}
			return nil
		}); err != nil {
			return err
		}
		if b.Protection() != securedata.ReadOnly {
			return fmt.Errorf("protection is %s after the window", b.Protection())
		}
		return b.Read(func(data []byte) error {
			for i, v := range data {
				if v != byte(i)^0xFF {
					return fmt.Errorf("byte %d is %#x", i, v)
				}
			}
			return nil
		})
	}},
	{"truncate then index past the end", func() error {
		b, err := securedata.New(16, securedata.ReadOnly, sequenceFill)
		if err != nil {
			return err
		}
		defer b.Release()

		t, err := b.Truncate(8)
		if err != nil {
			return err
		}
		defer t.Release()

		if v, err := t.At(7); err != nil || v != 7 {
			return fmt.Errorf("At(7) = %d, %v", v, err)
		}
		_, err = t.At(8)
		return expectCode(err, errors.ErrCodeOutOfRange)
	}},
	{"no-access buffer opens for reading", func() error {
		b, err := securedata.New(32, securedata.NoAccess, sequenceFill)
		if err != nil {
			return err
		}
		defer b.Release()

		want := make([]byte, 32)
		sequenceFill(want)
		if ok, err := b.Equal(want); err != nil || !ok {
			return fmt.Errorf("contents differ after protection cycle (%v)", err)
		}
		if b.Protection() != securedata.NoAccess {
			return fmt.Errorf("protection is %s after reading", b.Protection())
		}
		return nil
	}},
	{"quota refuses oversized allocation", func() error {
		page := os.Getpagesize()
		arena := securedata.NewArena(securedata.MemcallAllocator(), page)

		small, err := securedata.New(page, securedata.NoAccess, nil, securedata.WithArena(arena))
		if err != nil {
			return err
		}
		defer small.Release()

		_, err = securedata.New(1, securedata.NoAccess, nil, securedata.WithArena(arena))
		if err := expectCode(err, errors.ErrCodeAllocation); err != nil {
			return err
		}
		if stats := arena.Stats(); stats.Buffers != 1 {
			return fmt.Errorf("arena holds %d buffers", stats.Buffers)
		}
		return nil
	}},
	{"released buffer refuses access", func() error {
		b, err := securedata.New(8, securedata.ReadOnly, sequenceFill)
		if err != nil {
			return err
		}
		if err := b.Release(); err != nil {
			return err
		}
		err = b.Read(func([]byte) error { return nil })
		return expectCode(err, errors.ErrCodeBufferReleased)
	}},
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Exercises locked, page-protected memory on this machine.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var limit unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limit); err == nil {
			fmt.Printf("RLIMIT_MEMLOCK: soft=%s hard=%s\n", formatLimit(limit.Cur), formatLimit(limit.Max))
		}
		fmt.Printf("Page size: %d bytes\n", os.Getpagesize())

		failed := 0
		for _, check := range selfChecks {
			if err := check.run(); err != nil {
				failed++
				fmt.Printf("%s %s: %v\n", colors.SafeColor("FAIL", colors.Error), check.name, err)
				continue
			}
			fmt.Printf("%s %s\n", colors.SafeColor("ok", colors.Success), check.name)
		}

		stats := securedata.DefaultArena().Stats()
		fmt.Printf("Default arena: %d buffers, %d bytes locked, quota %s\n",
			stats.Buffers, stats.InUse, formatQuota(stats.Quota))

		if failed > 0 {
			return errors.Newf(errors.ErrCodeInternal, "%d of %d self checks failed", failed, len(selfChecks))
		}
		return nil
	},
}

func formatLimit(v uint64) string {
	if v == ^uint64(0) {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

func formatQuota(q int) string {
	if q == 0 {
		return "none"
	}
	return fmt.Sprintf("%d", q)
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}
