// pkg/cli/cli.go
//
// Flag helpers shared by the kvault commands.
package cli

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlagsToViper binds every flag in fs to v. Keys maps a flag name to
// its config key; unmapped flags bind under their own name.
func BindFlagsToViper(fs *pflag.FlagSet, v *viper.Viper, keys map[string]string) error {
	var result error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			key = f.Name
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, fmt.Errorf("bind --%s: %w", f.Name, err))
		}
	})
	return result
}

// GetRequiredString returns a string flag, failing when it is empty.
func GetRequiredString(cmd *cobra.Command, name string) (string, error) {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("flag error for --%s: %w", name, err)
	}
	if val == "" {
		return "", fmt.Errorf("required flag --%s is empty", name)
	}
	return val, nil
}
