package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tesoreria/internal/amqp"
	"tesoreria/internal/cli"
	"tesoreria/internal/core"
	"tesoreria/internal/notify"
	"tesoreria/internal/payment"
	"tesoreria/internal/roster"
	"tesoreria/internal/treasury"
	"tesoreria/internal/upload"
)

const usage = `Usage: tesoreria <command> [flags]

Commands:
  config     show or set the treasury configuration
  account    manage accounts (list, create, update, delete)
  tx         manage transactions (list, record, delete)
  plan       generate or list the contribution plan
  pay        record a contribution payment or a combined settlement
  fine       manage fines (list, create, pay)
  budget     set budget lines and show budget execution
  statement  show one organizer's statement
  report     print the full treasury report
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	st := cli.InitStore(logger, cfg)
	defer st.Close()

	var notifier notify.Notifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		notifier = amqp.NewNotifier(client)
	}

	svc := treasury.New(st, roster.NewFile(cfg.RosterPath), notifier)
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "config":
		err = runConfig(ctx, svc, os.Args[2:])
	case "account":
		err = runAccount(ctx, svc, os.Args[2:])
	case "tx":
		err = runTx(ctx, svc, os.Args[2:])
	case "plan":
		err = runPlan(ctx, svc, os.Args[2:])
	case "pay":
		err = runPay(ctx, svc, cli.InitUploader(logger, cfg), os.Args[2:])
	case "fine":
		err = runFine(ctx, svc, os.Args[2:])
	case "budget":
		err = runBudget(ctx, svc, os.Args[2:])
	case "statement":
		err = runStatement(ctx, svc, os.Args[2:])
	case "report":
		err = runReport(ctx, svc)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runConfig(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	monthly := fs.String("monthly", "", "monthly contribution amount, e.g. 50.00")
	periods := fs.String("periods", "", "comma-separated period ids, e.g. 2026-01,2026-02")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *monthly == "" && *periods == "" {
		cfg, err := svc.Config(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Monthly amount: %s\n", cfg.MonthlyAmount)
		for _, p := range cfg.Periods {
			fmt.Printf("  %s  %s  deadline %s\n", p.ID, p.Label, p.Deadline.Format("2006-01-02"))
		}
		return nil
	}

	cents, err := core.ParseDecimalToCents(*monthly)
	if err != nil {
		return err
	}
	cfg := core.TreasuryConfig{MonthlyAmount: core.Money{Cents: cents}}
	for _, id := range strings.Split(*periods, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		t, err := time.Parse("2006-01", id)
		if err != nil {
			return fmt.Errorf("period %q: expected YYYY-MM", id)
		}
		// deadline is the last day of the month
		deadline := t.AddDate(0, 1, -1)
		cfg.Periods = append(cfg.Periods, core.Period{
			ID:       id,
			Label:    t.Format("January 2006"),
			Deadline: deadline,
		})
	}
	return svc.SaveConfig(ctx, cfg)
}

func runAccount(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("account", flag.ExitOnError)
	create := fs.String("create", "", "create an account with this name")
	accountType := fs.String("type", "bank", "account type for -create or -update")
	update := fs.String("update", "", "account id to update")
	name := fs.String("name", "", "new name for -update")
	remove := fs.String("delete", "", "account id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *create != "":
		account, err := svc.CreateAccount(ctx, *create, *accountType)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %s (%s)\n", account.ID, account.Name)
		return nil
	case *update != "":
		patch := treasury.AccountPatch{}
		if *name != "" {
			patch.Name = name
		}
		if *accountType != "" {
			patch.Type = accountType
		}
		_, err := svc.UpdateAccount(ctx, *update, patch)
		return err
	case *remove != "":
		return svc.DeleteAccount(ctx, *remove)
	default:
		accounts, err := svc.Accounts(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE")
		for _, a := range accounts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, a.Balance)
		}
		return w.Flush()
	}
}

func runTx(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("tx", flag.ExitOnError)
	account := fs.String("account", "", "account id to record against")
	amount := fs.String("amount", "", "signed amount, e.g. -120.50 for an expense")
	category := fs.String("category", "", "transaction category")
	description := fs.String("desc", "", "transaction description")
	remove := fs.String("delete", "", "transaction id to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *remove != "":
		return svc.DeleteTransaction(ctx, *remove)
	case *account != "":
		negative := strings.HasPrefix(strings.TrimSpace(*amount), "-")
		cents, err := core.ParseDecimalToCents(strings.TrimPrefix(strings.TrimSpace(*amount), "-"))
		if err != nil {
			return err
		}
		if negative {
			cents = -cents
		}
		tx, err := svc.RecordTransaction(ctx, treasury.NewTransaction{
			AccountID:   *account,
			Amount:      core.Money{Cents: cents},
			Category:    *category,
			Description: *description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recorded transaction %s (%s)\n", tx.ID, tx.Amount)
		return nil
	default:
		transactions, err := svc.Transactions(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION")
		for _, t := range transactions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Date.Format("2006-01-02"), t.Category, t.Amount, t.Description)
		}
		return w.Flush()
	}
}

func runPlan(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	generate := fs.Bool("generate", false, "regenerate the contribution plan from the roster")
	force := fs.Bool("force", false, "regenerate even when paid obligations exist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *generate {
		plan, err := svc.GeneratePlan(ctx, *force)
		if err != nil {
			if errors.Is(err, core.ErrPlanHasPayments) {
				return fmt.Errorf("%w (use -force to discard them)", err)
			}
			return err
		}
		fmt.Printf("Generated %d obligations\n", len(plan))
		return nil
	}

	plan, err := svc.Obligations(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORGANIZER\tPERIOD\tEXPECTED\tSTATUS")
	for _, o := range plan {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.OrganizerID, o.Period, o.Expected, o.Status)
	}
	return w.Flush()
}

func runPay(ctx context.Context, svc *treasury.Service, uploader upload.Uploader, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	organizer := fs.String("organizer", "", "organizer id")
	months := fs.String("months", "", "comma-separated period ids, earliest first")
	fineID := fs.String("fine", "", "fine id to bundle into the voucher")
	account := fs.String("account", "", "account id to credit")
	voucherFile := fs.String("voucher-file", "", "voucher file to upload (jpg, png or pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *organizer == "" {
		return errors.New("missing -organizer")
	}

	obligations, err := svc.ObligationsForOrganizer(ctx, *organizer)
	if err != nil {
		return err
	}
	sel := payment.NewSelection(*organizer, obligations)
	for _, period := range strings.Split(*months, ",") {
		period = strings.TrimSpace(period)
		if period == "" {
			continue
		}
		if err := sel.SelectPeriod(period); err != nil {
			return fmt.Errorf("select %s: %w", period, err)
		}
	}
	if *fineID != "" {
		fines, err := svc.FinesForOrganizer(ctx, *organizer)
		if err != nil {
			return err
		}
		attached := false
		for _, f := range fines {
			if f.ID == *fineID {
				if err := sel.AttachFine(f); err != nil {
					return err
				}
				attached = true
				break
			}
		}
		if !attached {
			return core.ErrFineNotFound
		}
	}

	flow := payment.NewFlow(svc, uploader)
	if *voucherFile != "" {
		f, err := os.Open(*voucherFile)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if err := flow.AttachVoucher(ctx, sel, info.Name(), f, info.Size()); err != nil {
			return err
		}
	}

	result, err := flow.Submit(ctx, sel, *account)
	if err != nil {
		return err
	}
	fmt.Printf("Settled %d months", len(result.Obligations))
	if result.Fine != nil {
		fmt.Print(" and 1 fine")
	}
	fmt.Printf(" for %s\n", result.Total)
	return nil
}

func runFine(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("fine", flag.ExitOnError)
	organizer := fs.String("organizer", "", "organizer id for -create")
	organizerName := fs.String("organizer-name", "", "organizer display name for -create")
	description := fs.String("desc", "", "fine description for -create")
	amount := fs.String("amount", "", "fine amount for -create, e.g. 15.00")
	pay := fs.String("pay", "", "fine id to pay")
	account := fs.String("account", "", "account id for -pay")
	voucher := fs.String("voucher", "", "voucher URL for -pay")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *pay != "":
		res, err := svc.PayFine(ctx, treasury.PayFineParams{
			FineID:     *pay,
			AccountID:  *account,
			VoucherURL: *voucher,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Fine paid, transaction %s (%s)\n", res.Transaction.ID, res.Transaction.Amount)
		return nil
	case *organizer != "":
		cents, err := core.ParseDecimalToCents(*amount)
		if err != nil {
			return err
		}
		fine, err := svc.CreateFine(ctx, treasury.NewFine{
			OrganizerID:   *organizer,
			OrganizerName: *organizerName,
			Description:   *description,
			Amount:        core.Money{Cents: cents},
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created fine %s\n", fine.ID)
		return nil
	default:
		fines, err := svc.Fines(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tORGANIZER\tAMOUNT\tSTATUS\tDESCRIPTION")
		for _, f := range fines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.OrganizerID, f.Amount, f.Status, f.Description)
		}
		return w.Flush()
	}
}

func runBudget(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("budget", flag.ExitOnError)
	set := fs.String("set", "", "category to set a budget line for")
	amount := fs.String("amount", "", "budgeted amount for -set, e.g. 1000.00")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *set != "" {
		cents, err := core.ParseDecimalToCents(*amount)
		if err != nil {
			return err
		}
		return svc.SetBudgetLine(ctx, *set, core.Money{Cents: cents})
	}

	rows, err := svc.BudgetExecution(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tBUDGETED\tEXECUTED\tPCT\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n", r.Category, r.Budgeted, r.Executed, r.Percentage, r.Status)
	}
	return w.Flush()
}

func runStatement(ctx context.Context, svc *treasury.Service, args []string) error {
	fs := flag.NewFlagSet("statement", flag.ExitOnError)
	organizer := fs.String("organizer", "", "organizer id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *organizer == "" {
		return errors.New("missing -organizer")
	}

	st, err := svc.OrganizerStatement(ctx, *organizer)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", st.OrganizerName, st.OrganizerID)
	fmt.Printf("  Paid: %s  Validating: %s  Pending: %s\n", st.Paid, st.Validating, st.Pending)
	for _, o := range st.Obligations {
		fmt.Printf("  %s  %s  %s\n", o.PeriodLabel, o.Expected, o.Status)
	}
	for _, f := range st.Fines {
		fmt.Printf("  Fine: %s  %s  %s\n", f.Description, f.Amount, f.Status)
	}
	return nil
}

func runReport(ctx context.Context, svc *treasury.Service) error {
	r, err := svc.BuildReport(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Treasury report, generated %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Total balance: %s across %d accounts\n", r.TotalBalance, len(r.Accounts))
	fmt.Printf("Obligations: %d paid, %d validating, %d pending\n",
		r.ObligationsPaid, r.ObligationsValidating, r.ObligationsPending)
	fmt.Printf("Outstanding fines: %s\n", r.FinesOutstanding)
	if len(r.Execution) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tBUDGETED\tEXECUTED\tPCT\tSTATUS")
		for _, row := range r.Execution {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
				row.Category, row.Budgeted, row.Executed, row.Percentage, row.Status)
		}
		return w.Flush()
	}
	return nil
}
