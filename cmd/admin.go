package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hookrelay/hookrelay"
	"github.com/spf13/cobra"
)

type adminFlags struct {
	addr    string
	timeout int
	owner   string
}

func (f *adminFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.addr, "addr", "", defaultAdminURL, "HTTP address of HookRelay's Admin API.")
	cmd.PersistentFlags().IntVarP(&f.timeout, "timeout", "", 10, "Set the request timeout for the client to connect with HookRelay (in seconds).")
	cmd.PersistentFlags().StringVarP(&f.owner, "owner", "", "", "Act on behalf of an owner.")
}

func (f *adminFlags) client() *resty.Client {
	client := resty.New().
		SetBaseURL(f.addr).
		SetTimeout(time.Duration(f.timeout)*time.Second).
		SetHeader("User-Agent", "HookRelay/"+hookrelay.VERSION).
		SetDebug(verbose)
	if f.owner != "" {
		client.SetHeader("X-Owner-ID", f.owner)
	}
	return client
}

func output(cmd *cobra.Command, resp *resty.Response, expected int) error {
	if resp.StatusCode() != expected {
		return fmt.Errorf("invalid status code: %d %s", resp.StatusCode(), resp.String())
	}
	cmd.Println(resp.String())
	return nil
}

func newAdminCmd() *cobra.Command {
	flags := &adminFlags{}

	admin := &cobra.Command{
		Use:   "admin",
		Short: "Admin commands",
		Long:  ``,
	}
	flags.bind(admin)

	admin.AddCommand(newAdminTriggerCmd(flags))
	admin.AddCommand(newAdminListCmd(flags))

	return admin
}

func newAdminTriggerCmd(flags *adminFlags) *cobra.Command {
	var data string

	trigger := &cobra.Command{
		Use:   "trigger [flags] event",
		Short: "Trigger an event to the subscribed webhooks.",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := make(map[string]interface{})
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return fmt.Errorf("invalid data: %w", err)
			}

			resp, err := flags.client().R().
				SetBody(map[string]interface{}{
					"event_type": args[0],
					"data":       payload,
				}).
				Post("/events")
			if err != nil {
				return err
			}
			return output(cmd, resp, 202)
		},
	}

	trigger.Flags().StringVarP(&data, "data", "d", "{}", "Event data as a JSON object.")

	return trigger
}

func newAdminListCmd(flags *adminFlags) *cobra.Command {
	resources := map[string]string{
		"webhooks":          "/webhooks",
		"incoming-webhooks": "/incoming-webhooks",
		"deliveries":        "/deliveries",
		"logs":              "/logs",
	}

	var pageSize int

	list := &cobra.Command{
		Use:       "list [flags] webhooks|incoming-webhooks|deliveries|logs",
		Short:     "List entities of a resource.",
		Long:      ``,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"webhooks", "incoming-webhooks", "deliveries", "logs"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := flags.client().R().
				SetQueryParam("page_size", fmt.Sprint(pageSize)).
				Get(resources[args[0]])
			if err != nil {
				return err
			}
			return output(cmd, resp, 200)
		},
	}

	list.Flags().IntVarP(&pageSize, "page-size", "", 20, "Number of entities per page.")

	return list
}
