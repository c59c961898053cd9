package main

import (
	"github.com/jonathan/found/internal/types"
	"github.com/spf13/cobra"
)

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Drive a real LinkedIn session in Chrome",
}

var (
	browserQuery      string
	browserLocation   string
	browserCompany    string
	browserMaxJobs    int
	browserSubmit     bool
	browserMessage    bool
	browserApproveAll bool
	browserDryRun     bool
)

var browserRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in, search jobs and optionally apply and message recruiters",
	Long: `Opens Chrome, restores or creates a LinkedIn session, searches for jobs and records what it found.

Submitting applications requires --submit, --approve and LINKEDIN_ALLOW_AUTO_SUBMIT=true. Messages are drafted unless --message and --approve are both set.`,
	RunE: runBrowserRun,
}

func init() {
	browserRunCmd.Flags().StringVarP(&browserQuery, "query", "q", "", "Job search keywords (defaults to company and target role)")
	browserRunCmd.Flags().StringVar(&browserLocation, "location", "", "Search location (defaults to profile location)")
	browserRunCmd.Flags().StringVar(&browserCompany, "company", "", "Company to focus on")
	browserRunCmd.Flags().IntVar(&browserMaxJobs, "max-jobs", 0, "Jobs to collect (default 5, at most 10)")
	browserRunCmd.Flags().BoolVar(&browserSubmit, "submit", false, "Attempt Easy Apply submissions")
	browserRunCmd.Flags().BoolVar(&browserMessage, "message", false, "Send recruiter messages")
	browserRunCmd.Flags().BoolVar(&browserApproveAll, "approve", false, "Approve the requested submissions and messages")
	browserRunCmd.Flags().BoolVar(&browserDryRun, "dry-run", false, "Plan only; no browser is opened")

	browserCmd.AddCommand(browserRunCmd)
	rootCmd.AddCommand(browserCmd)
}

func runBrowserRun(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	req := types.CreateBrowserRunRequest{
		SearchQuery:           browserQuery,
		Location:              browserLocation,
		Company:               browserCompany,
		MaxJobs:               browserMaxJobs,
		SubmitApplications:    browserSubmit,
		SendRecruiterMessages: browserMessage,
		Approvals: types.BrowserApprovals{
			SubmitApplications: browserApproveAll && browserSubmit,
			SendMessages:       browserApproveAll && browserMessage,
		},
		DryRun: browserDryRun,
	}

	run, runErr := a.browser.Run(cmd.Context(), req)
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintBrowserRun(&run)
	}
	if run.ID != "" {
		if err := printJSON(cmd.OutOrStdout(), run); err != nil {
			return err
		}
	}
	return runErr
}
