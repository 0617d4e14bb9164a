package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/novafond/advisorbot/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config and lease store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			fmt.Printf("config: ok (%s)\n", cfgPath)

			if cfg.Channels.Telegram.Token == "" && cfg.Channels.Discord.Token == "" {
				fmt.Println("channels: WARNING — no channel token configured")
			} else {
				fmt.Println("channels: ok")
			}

			store, err := openLeaseStore(cfg.Instance)
			if err != nil {
				return fmt.Errorf("lease store: %w", err)
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			lease, err := store.Get(ctx)
			if err != nil {
				return fmt.Errorf("lease store: %w", err)
			}
			switch {
			case lease == nil:
				fmt.Printf("lease store: ok (%s backend, no active lease)\n", cfg.Instance.Backend)
			case lease.IsExpired(time.Now().UTC()):
				fmt.Printf("lease store: ok (expired lease held by %s)\n", lease.OwnerID)
			default:
				fmt.Printf("lease store: ok (live lease held by %s until %s)\n",
					lease.OwnerID, lease.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
