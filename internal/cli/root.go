// Package cli exposes the preferences store and service as a command line tool
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/services"
)

var errMissingUser = errors.New("missing --user")

type options struct {
	userID string
	json   bool
}

// NewRootCommand builds the prefs command tree on top of container
func NewRootCommand(container *services.Container) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "prefs",
		Short:         "Manage per-user unit preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.userID) == "" {
				return errMissingUser
			}
			container.Logger().Debug(cmd.Context()).
				Str("command", cmd.CommandPath()).
				Str("user_id", opts.userID).
				Msg("command start")
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user whose preferences are managed")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		newShowCommand(container, opts),
		newOnboardCommand(container, opts),
		newSetCommand(container, opts),
		newDeleteCommand(container, opts),
		newSystemCommand(container, opts),
		newLoggingCommand(container, opts),
	)

	return root
}

func printPreferences(w io.Writer, asJSON bool, p preferences.PreferenceSet) error {
	if asJSON {
		return json.NewEncoder(w).Encode(p)
	}

	status := "stored"
	if !p.IsPersisted() {
		status = "default"
	}

	fmt.Fprintf(w, "user:              %s (%s)\n", p.UserID, status)
	fmt.Fprintf(w, "body weight:       %s\n", p.BodyWeightUnit)
	fmt.Fprintf(w, "strength training: %s\n", p.StrengthTrainingUnit)
	fmt.Fprintf(w, "body measurement:  %s\n", p.BodyMeasurementUnit)
	fmt.Fprintf(w, "distance:          %s\n", p.DistanceUnit)
	fmt.Fprintf(w, "advanced logging:  %t\n", p.AdvancedLoggingEnabled)
	fmt.Fprintf(w, "unit system:       %s\n", preferences.Classify(p))
	return nil
}
