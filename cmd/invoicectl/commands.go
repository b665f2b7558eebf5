package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"tourinvoice/internal/attachment"
	"tourinvoice/internal/calculator"
	"tourinvoice/internal/logger"
	"tourinvoice/internal/model"
	"tourinvoice/internal/money"
	"tourinvoice/internal/render"
	"tourinvoice/internal/validator"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var inFlag = &cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "document JSON file, - for stdin", Value: "-"}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check a document and list every violation",
		Flags: []cli.Flag{
			inFlag,
			&cli.StringFlag{Name: "owner", Usage: "owner id the document is validated for", Required: true},
		},
		Action: func(c *cli.Context) error {
			doc, err := readDocument(c.String("in"))
			if err != nil {
				return err
			}
			res := validator.Validate(doc, c.String("owner"))
			if res.OK {
				fmt.Fprintln(c.App.Writer, "ok")
				return nil
			}
			for _, e := range res.Errors {
				fmt.Fprintln(c.App.Writer, e)
			}
			return cli.Exit(fmt.Sprintf("%d validation error(s)", len(res.Errors)), 2)
		},
	}
}

func recomputeCommand() *cli.Command {
	return &cli.Command{
		Name:  "recompute",
		Usage: "derive travel duration, daily allowance and totals, and print the document",
		Flags: []cli.Flag{inFlag},
		Action: func(c *cli.Context) error {
			doc, err := readDocument(c.String("in"))
			if err != nil {
				return err
			}
			calc, err := calculatorFrom(c)
			if err != nil {
				return err
			}
			if err := calc.Recompute(&doc); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "write the PDF report of a document",
		Flags: []cli.Flag{
			inFlag,
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output PDF path", Required: true},
			&cli.StringFlag{Name: "owner", Usage: "validate for this owner id before rendering"},
			&cli.StringFlag{Name: "attachments", Usage: "directory attachment references resolve against", Value: ".", EnvVars: []string{"ATTACHMENT_DIR"}},
			&cli.StringFlag{Name: "s3-bucket", Usage: "resolve attachment references in this bucket instead", EnvVars: []string{"ATTACHMENT_S3_BUCKET"}},
			&cli.StringFlag{Name: "aws-region", Value: "ap-south-1", EnvVars: []string{"AWS_REGION"}},
		},
		Action: func(c *cli.Context) error {
			doc, err := readDocument(c.String("in"))
			if err != nil {
				return err
			}
			if owner := c.String("owner"); owner != "" {
				if err := validator.Validate(doc, owner).Err(); err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}

			rate, err := decimal.NewFromString(c.String("rate"))
			if err != nil {
				return fmt.Errorf("invalid rate: %w", err)
			}
			formatter, err := money.NewFormatter(c.String("locale"))
			if err != nil {
				return err
			}
			source, err := attachment.New(c.String("attachments"), c.String("s3-bucket"), c.String("aws-region"))
			if err != nil {
				return err
			}
			log, err := cliLogger(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			r := render.NewRenderer(render.DefaultOptions(formatter, rate), source, log, nil)
			data, err := r.Render(c.Context, doc)
			if err != nil {
				return err
			}
			if err := os.WriteFile(c.String("out"), data, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "wrote %s (%d bytes)\n", c.String("out"), len(data))
			return nil
		},
	}
}

func calcCommand() *cli.Command {
	return &cli.Command{
		Name:      "calc",
		Usage:     "compute days, nights and daily allowance for a trip",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "departure", Usage: `departure as "YYYY-MM-DD HH:MM"`, Required: true},
			&cli.StringFlag{Name: "return", Usage: `return as "YYYY-MM-DD HH:MM"`, Required: true},
		},
		Action: func(c *cli.Context) error {
			calc, err := calculatorFrom(c)
			if err != nil {
				return err
			}
			td, err := travelDuration(c.String("departure"), c.String("return"))
			if err != nil {
				return err
			}
			d, err := calc.Derive(td)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			fmt.Fprintf(c.App.Writer, "days of travel: %d\nnights stayed:  %d\nDA amount:      %s\n",
				d.DaysOfTravel, d.NightsStayed, d.DAAmount.StringFixed(2))
			return nil
		},
	}
}

func travelDuration(departure, ret string) (model.TravelDuration, error) {
	depDate, depTime, ok := strings.Cut(strings.TrimSpace(departure), " ")
	if !ok {
		return model.TravelDuration{}, fmt.Errorf("departure %q must be \"YYYY-MM-DD HH:MM\"", departure)
	}
	retDate, retTime, ok := strings.Cut(strings.TrimSpace(ret), " ")
	if !ok {
		return model.TravelDuration{}, fmt.Errorf("return %q must be \"YYYY-MM-DD HH:MM\"", ret)
	}
	return model.TravelDuration{
		DepartureDate: depDate, DepartureTime: strings.TrimSpace(depTime),
		ReturnDate: retDate, ReturnTime: strings.TrimSpace(retTime),
	}, nil
}

func calculatorFrom(c *cli.Context) (*calculator.Calculator, error) {
	rate, err := decimal.NewFromString(c.String("rate"))
	if err != nil {
		return nil, fmt.Errorf("invalid rate: %w", err)
	}
	return calculator.New(rate), nil
}

func cliLogger(c *cli.Context) (*zap.Logger, error) {
	if !c.Bool("verbose") {
		return zap.NewNop(), nil
	}
	return logger.New("development")
}

func readDocument(path string) (model.InvoiceDocument, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return model.InvoiceDocument{}, err
		}
		defer f.Close()
		r = f
	}
	var doc model.InvoiceDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.InvoiceDocument{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}
