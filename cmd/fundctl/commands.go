package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/workflow"
)

// fileList collects a repeatable file flag
type fileList []string

func (f *fileList) String() string {
	return strings.Join(*f, ",")
}

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func (f fileList) files() []workflow.File {
	out := make([]workflow.File, len(f))
	for i, path := range f {
		out[i] = workflow.LocalFile(path)
	}
	return out
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "authority username")
	password := fs.String("p", "", "authority password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := workflow.Login(ctx, a.api, a.sessions, *username, *password)
	if err != nil {
		return err
	}
	a.notify.Success(ctx, fmt.Sprintf("Signed in as %s (%s)", sess.Authority.Name, sess.Authority.Department))
	return nil
}

func runConnectWallet(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("connect-wallet", flag.ContinueOnError)
	address := fs.String("address", "", "wallet address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := workflow.ConnectWallet(a.sessions, *address)
	if err != nil {
		return err
	}
	a.notify.Success(ctx, "Wallet connected: "+sess.Wallet)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := workflow.Logout(ctx, a.sessions); err != nil {
		return err
	}
	a.notify.Success(ctx, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	sess, _, err := a.session(ctx)
	if err != nil {
		return err
	}
	if sess.IsWallet() {
		fmt.Fprintf(a.out, "wallet %s (authority: %v)\n", sess.Wallet, a.allow.Allows(sess.Wallet))
		return nil
	}
	fmt.Fprintf(a.out, "%s %s, %s (reviews: %d)\n",
		sess.Authority.Username, sess.Authority.Name, sess.Authority.Department, sess.Authority.ReviewsCount)
	return nil
}

func runDashboard(ctx context.Context, a *app, args []string) error {
	stats, err := a.api.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	projects, err := a.api.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}

	fmt.Fprintf(a.out, "API: %s\n", a.api.BaseURL())
	fmt.Fprintf(a.out, "Projects: %d (%d active)  Budget: %.2f  Spent: %.2f  Utilization: %.1f%%\n\n",
		stats.TotalProjects, stats.ActiveProjects, stats.TotalBudget, stats.TotalSpent, stats.BudgetUtilization)

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tBUDGET\tSTATUS\tAPPROVAL")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n", p.ID, p.Name, p.Category, p.Budget, p.Status, p.ApprovalStatus)
	}
	return tw.Flush()
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	var info workflow.ProjectInfo
	var gps, labs, invoices fileList
	fs.StringVar(&info.Name, "name", "", "project name")
	fs.StringVar(&info.Description, "description", "", "project description")
	fs.StringVar(&info.Category, "category", model.DefaultCategory, "project category")
	fs.StringVar(&info.Budget, "budget", "", "budget amount")
	fs.StringVar(&info.ContractorName, "contractor", "", "contractor name")
	fs.StringVar(&info.ContractorWallet, "contractor-wallet", "", "contractor wallet (defaults to yours)")
	proposal := fs.String("proposal", "", "project proposal file")
	fs.Var(&gps, "gps", "GPS-tagged site photo (repeatable)")
	fs.Var(&labs, "lab", "lab report (repeatable)")
	fs.Var(&invoices, "invoice", "invoice (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, api, err := a.session(ctx)
	if err != nil {
		return err
	}

	w := workflow.NewWizard(api, sess.Account(), a.notify)
	if err := w.SetInfo(info); err != nil {
		return err
	}
	if err := w.SubmitInfo(ctx); err != nil {
		return err
	}

	docs := workflow.Documents{
		GPSPhotos:  gps.files(),
		LabReports: labs.files(),
		Invoices:   invoices.files(),
	}
	if *proposal != "" {
		f := workflow.LocalFile(*proposal)
		docs.Proposal = &f
	}
	if err := w.SetDocuments(docs); err != nil {
		return err
	}
	if _, err := w.SubmitDocuments(ctx); err != nil {
		return fmt.Errorf("project %s created without documents: %w", w.ProjectID(), err)
	}

	for _, u := range w.Uploads() {
		fmt.Fprintf(a.out, "    %s  sha256 %s\n", u.DocumentID, u.FileHash)
	}

	res, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "project %s submitted to %d authorities (tx %s)\n", w.ProjectID(), res.Approvals, res.TxHash)
	return nil
}

// reviewer resolves the session to an authority, registering wallets on
// first use, and loads the pending list.
func (a *app) reviewer(ctx context.Context) (*workflow.Reviewer, error) {
	sess, api, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	handle, err := workflow.EnsureAuthorityExists(ctx, api, a.allow, sess)
	if err != nil {
		return nil, err
	}
	if handle.Registered {
		a.notify.Success(ctx, "Registered as "+handle.Authority.Name)
	}

	r := workflow.NewReviewer(api, handle, a.notify)
	if _, err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func runReview(ctx context.Context, a *app, args []string) error {
	r, err := a.reviewer(ctx)
	if err != nil {
		return err
	}

	handle := r.Handle()
	fmt.Fprintf(a.out, "Reviewing as %s\n", handle.ID)

	pending := r.Pending()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "No pending approvals")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "APPROVAL\tPROJECT\tNAME\tCATEGORY\tBUDGET\tCONTRACTOR\tSUBMITTED")
	for _, req := range pending {
		p := req.Project
		if p == nil {
			p = &model.Project{ID: req.ProjectID}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			req.ID, p.ID, p.Name, p.Category, p.Budget, p.ContractorName, req.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runDecide(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)
	id := fs.String("id", "", "approval request id")
	decision := fs.String("decision", "", "Approved or Rejected")
	comments := fs.String("comments", "", "comments (required to reject)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := a.reviewer(ctx)
	if err != nil {
		return err
	}
	if _, err := r.Select(*id); err != nil {
		if errors.Is(err, workflow.ErrUnknownApproval) {
			return fmt.Errorf("approval %q is not pending for you", *id)
		}
		return err
	}
	return r.Decide(ctx, model.Decision(*decision), *comments)
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectID == "" {
		return fmt.Errorf("-project is required")
	}

	p, err := a.api.GetProject(ctx, *projectID)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	fmt.Fprintf(a.out, "%s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(a.out, "Category:   %s\n", p.Category)
	fmt.Fprintf(a.out, "Budget:     %.2f (allocated %.2f, spent %.2f)\n", p.Budget, p.AllocatedFunds, p.SpentFunds)
	fmt.Fprintf(a.out, "Status:     %s / %s\n", p.Status, p.ApprovalStatus)
	fmt.Fprintf(a.out, "Manager:    %s\n", p.ManagerAddress)
	fmt.Fprintf(a.out, "Contractor: %s %s\n", p.ContractorName, p.ContractorWallet)
	if p.TxHash != "" {
		fmt.Fprintf(a.out, "Tx:         %s\n", p.TxHash)
	}
	return nil
}

func runDocs(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("docs", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := a.reviewer(ctx)
	if err != nil {
		return err
	}
	docs, err := r.Documents(ctx, *projectID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tFILE\tSIZE\tGPS\tSHA256\tLOCATOR")
	for _, d := range docs {
		gps := "-"
		if d.GPSData != nil {
			gps = fmt.Sprintf("%.6f,%.6f", d.GPSData.Latitude, d.GPSData.Longitude)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", d.DocumentType, d.FileName, d.FileSize, gps, d.FileHash, d.Locator)
	}
	return tw.Flush()
}
