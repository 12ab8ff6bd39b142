// Command smsc is a thin CLI over the smsc client library.
//
//	smsc send -to 79999999999 -text "Hello, World!"
//	smsc cost -to 79999999999,79999999998 -text "Hello" -format viber
//	smsc status -phones 79999999999 -ids 1
//	smsc balance
//
// Credentials come from smsc.yaml or SMSC_LOGIN / SMSC_PASSWORD
// environment variables. Results are printed as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smscru/smsc-go/internal/platform/config"
	"github.com/smscru/smsc-go/internal/platform/logger"
	"github.com/smscru/smsc-go/smsc"
)

// optionUnset marks integer flags whose absence must keep the parameter
// out of the request entirely.
const optionUnset = -1

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "smsc:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogLevel)

	opts := []smsc.Option{smsc.WithLogger(log)}
	if cfg.Sender != "" {
		opts = append(opts, smsc.WithSender(cfg.Sender))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, smsc.WithBaseURL(cfg.BaseURL))
	}
	client := smsc.New(cfg.Login, cfg.Password, opts...)

	ctx := context.Background()
	if cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	switch args[0] {
	case "send":
		return runSend(ctx, client, args[1:], false)
	case "cost":
		return runSend(ctx, client, args[1:], true)
	case "status":
		return runStatus(ctx, client, args[1:])
	case "balance":
		return runBalance(ctx, client)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: smsc <send|cost|status|balance> [options]")
}

func runSend(ctx context.Context, client *smsc.Client, args []string, estimateOnly bool) error {
	name := "send"
	if estimateOnly {
		name = "cost"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	to := fs.String("to", "", "comma-separated recipient phone numbers")
	text := fs.String("text", "", "message text")
	format := fs.String("format", "sms", "message format: sms, flash or viber")
	translit := fs.Int("translit", optionUnset, "translit flag")
	tinyurl := fs.Int("tinyurl", optionUnset, "tinyurl flag")
	maxsms := fs.Int("maxsms", optionUnset, "maximum SMS parts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" || *text == "" {
		return errors.New("-to and -text are required")
	}

	message, err := buildMessage(*format, *text, *translit, *tinyurl, *maxsms)
	if err != nil {
		return err
	}
	phones := strings.Split(*to, ",")

	if estimateOnly {
		resp, err := client.GetCost(ctx, phones, message)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}
	resp, err := client.Send(ctx, phones, message)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runStatus(ctx context.Context, client *smsc.Client, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	phones := fs.String("phones", "", "comma-separated phone numbers")
	ids := fs.String("ids", "", "comma-separated message ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *phones == "" || *ids == "" {
		return errors.New("-phones and -ids are required")
	}

	resp, err := client.GetStatus(ctx, strings.Split(*phones, ","), strings.Split(*ids, ","))
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runBalance(ctx context.Context, client *smsc.Client) error {
	resp, err := client.GetBalance(ctx)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func buildMessage(format, text string, translit, tinyurl, maxsms int) (*smsc.Message, error) {
	var opts []smsc.MessageOption
	if translit != optionUnset {
		opts = append(opts, smsc.WithTranslit(translit))
	}
	if tinyurl != optionUnset {
		opts = append(opts, smsc.WithTinyURL(tinyurl))
	}
	if maxsms != optionUnset {
		opts = append(opts, smsc.WithMaxSMS(maxsms))
	}

	switch format {
	case "sms":
		return smsc.NewSMSMessage(text, opts...)
	case "flash":
		return smsc.NewFlashMessage(text, opts...)
	case "viber":
		return smsc.NewViberMessage(text, opts...)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func printJSON(payload any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
