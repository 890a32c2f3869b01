package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/flowdesk/pkg/config"
	"github.com/harrisonrobin/flowdesk/pkg/filter"
)

// setting reads and writes one config key.
type setting struct {
	get func(c *config.Config) string
	set func(c *config.Config, value string) error
}

var settings = map[string]setting{
	"api_url": {
		get: func(c *config.Config) string { return c.APIURL },
		set: func(c *config.Config, v string) error {
			if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
				return fmt.Errorf("api_url must start with http:// or https://")
			}
			c.APIURL = strings.TrimRight(v, "/")
			return nil
		},
	},
	"calendar": {
		get: func(c *config.Config) string { return c.Calendar },
		set: func(c *config.Config, v string) error { c.Calendar = v; return nil },
	},
	"poll_interval": {
		get: func(c *config.Config) string { return c.PollInterval.String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("poll_interval must be a positive duration such as 30s")
			}
			c.PollInterval = config.Duration{Duration: d}
			return nil
		},
	},
	"locale": {
		get: func(c *config.Config) string { return c.Locale },
		set: func(c *config.Config, v string) error { c.Locale = v; return nil },
	},
	"theme": {
		get: func(c *config.Config) string { return c.Theme },
		set: func(c *config.Config, v string) error {
			if v != "dark" && v != "light" {
				return fmt.Errorf("theme must be dark or light")
			}
			c.Theme = v
			return nil
		},
	},
	"default_sort": {
		get: func(c *config.Config) string { return c.DefaultSort },
		set: func(c *config.Config, v string) error {
			if !validSortKey(filter.SortKey(v)) {
				return fmt.Errorf("default_sort must be one of createdAt, endDate, title, priority")
			}
			c.DefaultSort = v
			return nil
		},
	},
	"default_order": {
		get: func(c *config.Config) string { return c.DefaultOrder },
		set: func(c *config.Config, v string) error {
			if v != string(filter.Asc) && v != string(filter.Desc) {
				return fmt.Errorf("default_order must be asc or desc")
			}
			c.DefaultOrder = v
			return nil
		},
	},
}

func settingKeys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupSetting(key string) (setting, error) {
	s, ok := settings[key]
	if !ok {
		return setting{}, fmt.Errorf("unknown key %q: must be one of %s", key, strings.Join(settingKeys(), ", "))
	}
	return s, nil
}

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [KEY]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				s, err := lookupSetting(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.get(cfg))
				return nil
			}
			values := make(map[string]string, len(settings))
			for _, k := range settingKeys() {
				values[k] = settings[k].get(cfg)
			}
			return app.emit(cmd, values, func(w io.Writer) error {
				for _, k := range settingKeys() {
					fmt.Fprintf(w, "%s = %s\n", k, values[k])
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := lookupSetting(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := s.set(cfg, strings.TrimSpace(args[1])); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], s.get(cfg))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}
