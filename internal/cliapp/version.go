package cliapp

import (
	"fmt"

	"github.com/spf13/cobra"

	"prtip/internal/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the prtip version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}
