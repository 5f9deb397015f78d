package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"unit-preferences/internal/domain/preferences"
	"unit-preferences/internal/services"
	"unit-preferences/internal/state"
)

// stateError surfaces the store's user-facing message
func stateError(st state.State) error {
	if st.Error != "" {
		return errors.New(st.Error)
	}
	return nil
}

func newShowCommand(container *services.Container, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current preferences, or the defaults when none are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := container.PreferencesStore().LoadUserPreferences(cmd.Context(), opts.userID)
			if err := stateError(st); err != nil {
				return err
			}
			return printPreferences(cmd.OutOrStdout(), opts.json, container.PreferencesStore().CurrentOrDefault())
		},
	}
}

func newOnboardCommand(container *services.Container, opts *options) *cobra.Command {
	var bodyWeight, strength, measurement, distance string

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Store the units chosen during onboarding",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseOnboarding(bodyWeight, strength, measurement, distance)
			if err != nil {
				return err
			}

			st := container.PreferencesStore().CreateUserPreferences(cmd.Context(), opts.userID, data)
			if err := stateError(st); err != nil {
				return err
			}
			return printPreferences(cmd.OutOrStdout(), opts.json, *st.Preferences)
		},
	}

	cmd.Flags().StringVar(&bodyWeight, "body-weight", string(preferences.WeightUnitKilograms), "body weight unit (kg|lbs)")
	cmd.Flags().StringVar(&strength, "strength", string(preferences.WeightUnitKilograms), "strength training unit (kg|lbs)")
	cmd.Flags().StringVar(&measurement, "measurement", string(preferences.MeasurementUnitCentimeters), "body measurement unit (cm|in)")
	cmd.Flags().StringVar(&distance, "distance", string(preferences.DistanceUnitKilometers), "distance unit (km|mi)")

	return cmd
}

func newSetCommand(container *services.Container, opts *options) *cobra.Command {
	var bodyWeight, strength, measurement, distance string
	var advancedLogging bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual preferences; unset flags are left untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			var update preferences.PreferencesUpdate
			flags := cmd.Flags()

			if flags.Changed("body-weight") {
				u, err := preferences.ParseWeightUnit("body_weight_unit", bodyWeight)
				if err != nil {
					return err
				}
				update.BodyWeightUnit = &u
			}
			if flags.Changed("strength") {
				u, err := preferences.ParseWeightUnit("strength_training_unit", strength)
				if err != nil {
					return err
				}
				update.StrengthTrainingUnit = &u
			}
			if flags.Changed("measurement") {
				u, err := preferences.ParseMeasurementUnit(measurement)
				if err != nil {
					return err
				}
				update.BodyMeasurementUnit = &u
			}
			if flags.Changed("distance") {
				u, err := preferences.ParseDistanceUnit(distance)
				if err != nil {
					return err
				}
				update.DistanceUnit = &u
			}
			if flags.Changed("advanced-logging") {
				update.AdvancedLoggingEnabled = &advancedLogging
			}

			st := container.PreferencesStore().UpdateUserPreferences(cmd.Context(), opts.userID, update)
			if err := stateError(st); err != nil {
				return err
			}
			return printPreferences(cmd.OutOrStdout(), opts.json, *st.Preferences)
		},
	}

	cmd.Flags().StringVar(&bodyWeight, "body-weight", "", "body weight unit (kg|lbs)")
	cmd.Flags().StringVar(&strength, "strength", "", "strength training unit (kg|lbs)")
	cmd.Flags().StringVar(&measurement, "measurement", "", "body measurement unit (cm|in)")
	cmd.Flags().StringVar(&distance, "distance", "", "distance unit (km|mi)")
	cmd.Flags().BoolVar(&advancedLogging, "advanced-logging", false, "enable advanced workout logging")

	return cmd
}

func newDeleteCommand(container *services.Container, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete stored preferences; the user falls back to defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := container.PreferencesStore().DeleteUserPreferences(cmd.Context(), opts.userID); err != nil {
				return err
			}
			if opts.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"user_id": opts.userID,
					"deleted": true,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences deleted.")
			return nil
		},
	}
}

func newSystemCommand(container *services.Container, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "system",
		Short: "Print whether the user's units are metric, imperial or mixed",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := container.PreferencesService().GetPreferences(cmd.Context(), opts.userID)
			if err != nil {
				return err
			}

			system := preferences.Classify(*result)
			if opts.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"user_id":     opts.userID,
					"unit_system": system,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), system)
			return nil
		},
	}
}

func newLoggingCommand(container *services.Container, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "advanced-logging",
		Short: "Print whether advanced logging is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := container.PreferencesService().IsAdvancedLoggingEnabled(cmd.Context(), opts.userID)
			if opts.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"user_id": opts.userID,
					"enabled": enabled,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), enabled)
			return nil
		},
	}
}

func parseOnboarding(bodyWeight, strength, measurement, distance string) (preferences.OnboardingData, error) {
	var data preferences.OnboardingData
	var err error

	if data.BodyWeightUnit, err = preferences.ParseWeightUnit("body_weight_unit", bodyWeight); err != nil {
		return data, err
	}
	if data.StrengthTrainingUnit, err = preferences.ParseWeightUnit("strength_training_unit", strength); err != nil {
		return data, err
	}
	if data.BodyMeasurementUnit, err = preferences.ParseMeasurementUnit(measurement); err != nil {
		return data, err
	}
	if data.DistanceUnit, err = preferences.ParseDistanceUnit(distance); err != nil {
		return data, err
	}
	return data, nil
}
