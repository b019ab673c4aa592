package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/restock-tracker/internal/jsonstore"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
	"github.com/donaldgifford/restock-tracker/pkg/logger"
)

func subscribersCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "subscribers",
		Aliases: []string{"subs"},
		Short:   "Manage SMS subscribers",
		Long: "Manage the subscriber document (users.json) directly. Changes are made\n" +
			"under the file lock and are picked up by a running server.",
	}

	root.AddCommand(
		subscribersListCmd(),
		subscribersAddCmd(),
		subscribersRemoveCmd(),
		subscribersRenameCmd(),
		subscribersSubscribeCmd(),
		subscribersUnsubscribeCmd(),
		subscribersNotificationsCmd(),
	)
	return root
}

func openSubscribers() (*subscribers.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	return subscribers.New(cfg.Data.Path(cfg.Data.UsersFile),
		subscribers.WithLogger(log),
		subscribers.WithStoreOptions(jsonstore.WithLogger(log)),
	), nil
}

func phoneArg(raw string) (string, error) {
	phone, ok := subscribers.NormalizePhone(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", subscribers.ErrInvalidPhone, raw)
	}
	return phone, nil
}

func subscribersListCmd() *cobra.Command {
	var showPhones bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscribers",
		Example: `  restock-tracker subscribers list
  restock-tracker subscribers list --show-phones`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openSubscribers()
			if err != nil {
				return err
			}
			users, err := store.List()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput() {
				if !showPhones {
					for i := range users {
						users[i].Phone = subscribers.MaskPhone(users[i].Phone)
					}
				}
				return outputJSON(w, users)
			}
			if len(users) == 0 {
				_, err := fmt.Fprintln(w, "No subscribers.")
				return err
			}
			return printSubscribersTable(w, users, showPhones)
		},
	}

	cmd.Flags().BoolVar(&showPhones, "show-phones", false, "print full phone numbers")
	return cmd
}

func subscribersAddCmd() *cobra.Command {
	var name, invitedBy string

	cmd := &cobra.Command{
		Use:     "add <phone>",
		Short:   "Add a subscriber",
		Example: `  restock-tracker subscribers add "(555) 123-4567" --name Sam`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSubscribers()
			if err != nil {
				return err
			}
			sub, err := store.Add(args[0], name, invitedBy)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s.\n", subscribers.FormatPhone(sub.Phone))
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&invitedBy, "invited-by", "", "phone number of the inviting subscriber")
	return cmd
}

func subscribersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <phone>",
		Short: "Remove a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}
			store, err := openSubscribers()
			if err != nil {
				return err
			}
			if err := store.Remove(phone); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", subscribers.FormatPhone(phone))
			return err
		},
	}
}

func subscribersRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rename <phone> <name>",
		Short:   "Change a subscriber's display name",
		Example: `  restock-tracker subscribers rename 5551234567 "Sam K"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}
			store, err := openSubscribers()
			if err != nil {
				return err
			}
			if err := store.Rename(phone, args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s.\n", subscribers.FormatPhone(phone))
			return err
		},
	}
}

func subscribersSubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "subscribe <phone> <product-key>...",
		Short:   "Subscribe to products",
		Example: `  restock-tracker subscribers subscribe 5551234567 shop:123 shop:456:789`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeSubscriptions(cmd, args, (*subscribers.Store).Subscribe, "Subscribed to")
		},
	}
}

func subscribersUnsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <phone> <product-key>...",
		Short: "Unsubscribe from products",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return changeSubscriptions(cmd, args, (*subscribers.Store).Unsubscribe, "Unsubscribed from")
		},
	}
}

func changeSubscriptions(
	cmd *cobra.Command,
	args []string,
	apply func(s *subscribers.Store, phone, key string) (bool, error),
	verb string,
) error {
	phone, err := phoneArg(args[0])
	if err != nil {
		return err
	}
	store, err := openSubscribers()
	if err != nil {
		return err
	}

	changed := 0
	for _, key := range args[1:] {
		ok, err := apply(store, phone, key)
		if err != nil {
			return err
		}
		if ok {
			changed++
		}
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d products.\n", verb, changed, len(args)-1)
	return err
}

func subscribersNotificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "notifications <phone> on|off",
		Short:     "Turn notifications on or off",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			phone, err := phoneArg(args[0])
			if err != nil {
				return err
			}

			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}

			store, err := openSubscribers()
			if err != nil {
				return err
			}
			if err := store.SetNotifications(phone, enabled); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Notifications %s for %s.\n", args[1], subscribers.FormatPhone(phone))
			return err
		},
	}
}
