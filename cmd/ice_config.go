package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/example/study-room-signaling/config"
	"github.com/example/study-room-signaling/modules/api"
	"github.com/spf13/cobra"
)

var iceConfigCmd = &cobra.Command{
	Use:   "ice-config",
	Short: "Print the ICE servers handed to clients",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return writeICEConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(iceConfigCmd)
}

// writeICEConfig prints the same document GET /ice-config returns.
func writeICEConfig(w io.Writer, cfg *config.Config) error {
	data, err := json.MarshalIndent(api.ICEConfigResponse{ICEServers: cfg.ICEServers()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ice config: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
