package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/contact-relay/internal/config"
	"github.com/jmehdipour/contact-relay/internal/dispatcher"
	"github.com/jmehdipour/contact-relay/internal/form"
	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/validate"
	"github.com/spf13/cobra"
)

type sendOpts struct {
	name, phone, email, address, message string
	generic, withAddress                 bool
}

func newSendCmd() *cobra.Command {
	var o sendOpts

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a contact form through the transport chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.name, "name", "", "contact name (required)")
	f.StringVar(&o.phone, "phone", "", "phone number (required)")
	f.StringVar(&o.email, "email", "", "email address")
	f.StringVar(&o.address, "address", "", "street address")
	f.StringVar(&o.message, "message", "", "free text message")
	f.BoolVar(&o.generic, "generic", false, "use generic form rules (email optional)")
	f.BoolVar(&o.withAddress, "with-address", false, "the form has an address field (address becomes required)")

	return cmd
}

func runSend(cmd *cobra.Command, o sendOpts) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	chain, err := dispatcher.FromConfig(cfg.Client)
	if err != nil {
		return fmt.Errorf("build transport chain: %w", err)
	}

	var fm *form.Form
	if o.generic {
		fm = form.NewGeneric(map[string]string{
			"name":    o.name,
			"phone":   o.phone,
			"email":   o.email,
			"address": o.address,
			"message": o.message,
		}, cfg.Client.ContactPhones)
	} else {
		rules := validate.Primary
		rules.HasAddress = o.withAddress
		fm = form.New(rules, cfg.Client.ContactPhones)
		fm.Edit(validate.FieldName, o.name)
		fm.Edit(validate.FieldPhone, o.phone)
		fm.Edit(validate.FieldEmail, o.email)
		fm.Edit(validate.FieldAddress, o.address)
		fm.Edit(validate.FieldMessage, o.message)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ok, err := fm.Submit(ctx, chain)
	if err != nil {
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("form invalid, first error on %q", verrs.First())
		}
		return err
	}

	b := fm.Banner()
	fmt.Fprintln(cmd.OutOrStdout(), b.Text)
	if !ok {
		return errors.New("submission not delivered")
	}
	return nil
}

var _ form.Sender = (*dispatcher.Dispatcher)(nil)
