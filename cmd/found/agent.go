package main

import (
	"fmt"

	"github.com/jonathan/found/internal/types"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run and configure the policy-gated agent",
}

var (
	runJobID       string
	runQuery       string
	runMode        string
	runSkip        []string
	runApprove     []string
	oppQuery       string
	oppLimit       int
	cfgAppLimit    int
	cfgOutLimit    int
	cfgRequireHITL string
	cfgTone        string
)

var agentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one agent run against the best matching job",
	Long: `Runs discovery, application, recruiter outreach and referral steps for one job.

Gated actions only execute in autopilot mode, within the daily limits, and with approval when the agent config requires a human.`,
	RunE: runAgentRun,
}

var agentRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List agent runs, most recent first",
	RunE:  runAgentRuns,
}

var agentConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the agent policy configuration",
	Long:  `Without flags the current configuration is printed. Any flag given updates that field only.`,
	RunE:  runAgentConfig,
}

var agentOpportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "Rank catalog jobs with their recruiter and referral counts",
	RunE:  runAgentOpportunities,
}

func init() {
	agentRunCmd.Flags().StringVar(&runJobID, "job", "", "Job id to target (defaults to the best match for --query)")
	agentRunCmd.Flags().StringVarP(&runQuery, "query", "q", "", "Search query used for discovery and target selection")
	agentRunCmd.Flags().StringVar(&runMode, "mode", "assist", "Run mode: assist or autopilot")
	agentRunCmd.Flags().StringSliceVar(&runSkip, "skip", nil, "Steps to skip: discover_jobs, fill_application, contact_recruiters, request_referrals")
	agentRunCmd.Flags().StringSliceVar(&runApprove, "approve", nil, "Approvals to grant: submit_application, send_outreach, request_referral")

	agentOpportunitiesCmd.Flags().StringVarP(&oppQuery, "query", "q", "", "Filter by title, company or skill")
	agentOpportunitiesCmd.Flags().IntVar(&oppLimit, "limit", 0, "Maximum opportunities (default 8)")

	agentConfigCmd.Flags().IntVar(&cfgAppLimit, "daily-application-limit", -1, "Applications allowed per day")
	agentConfigCmd.Flags().IntVar(&cfgOutLimit, "daily-outreach-limit", -1, "Outreach messages allowed per day")
	agentConfigCmd.Flags().StringVar(&cfgRequireHITL, "require-human-approval", "", "true or false")
	agentConfigCmd.Flags().StringVar(&cfgTone, "tone", "", "Message tone: professional, casual or formal")

	agentCmd.AddCommand(agentRunCmd, agentRunsCmd, agentConfigCmd, agentOpportunitiesCmd)
	rootCmd.AddCommand(agentCmd)
}

// buildRunRequest turns the run flags into a request.
func buildRunRequest() (types.CreateRunRequest, error) {
	req := types.CreateRunRequest{JobID: runJobID, SearchQuery: runQuery, Mode: runMode}

	off := false
	for _, id := range runSkip {
		switch types.StepID(id) {
		case types.StepDiscoverJobs:
			req.Actions.DiscoverJobs = &off
		case types.StepFillApplication:
			req.Actions.FillApplication = &off
		case types.StepContactRecruiters:
			req.Actions.ContactRecruiters = &off
		case types.StepRequestReferrals:
			req.Actions.RequestReferrals = &off
		default:
			return req, fmt.Errorf("unknown step %q", id)
		}
	}
	for _, name := range runApprove {
		switch name {
		case "submit_application":
			req.Approvals.SubmitApplication = true
		case "send_outreach":
			req.Approvals.SendOutreach = true
		case "request_referral":
			req.Approvals.RequestReferral = true
		default:
			return req, fmt.Errorf("unknown approval %q", name)
		}
	}
	return req, nil
}

func runAgentRun(cmd *cobra.Command, _ []string) error {
	req, err := buildRunRequest()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.agent.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintRun(&run)
	}
	return printJSON(cmd.OutOrStdout(), run)
}

func runAgentRuns(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	runs := a.agent.Runs()
	if p := printer(cmd.ErrOrStderr()); p != nil {
		for i := range runs {
			p.PrintRun(&runs[i])
		}
	}
	return printJSON(cmd.OutOrStdout(), runs)
}

func runAgentConfig(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var update types.AgentConfigUpdate
	changed := false
	if cmd.Flags().Changed("daily-application-limit") {
		update.DailyApplicationLimit = &cfgAppLimit
		changed = true
	}
	if cmd.Flags().Changed("daily-outreach-limit") {
		update.DailyOutreachLimit = &cfgOutLimit
		changed = true
	}
	if cmd.Flags().Changed("require-human-approval") {
		var required bool
		switch cfgRequireHITL {
		case "true":
			required = true
		case "false":
		default:
			return fmt.Errorf("--require-human-approval must be true or false")
		}
		update.RequireHumanApproval = &required
		changed = true
	}
	if cmd.Flags().Changed("tone") {
		tone := types.MessageTone(cfgTone)
		update.PreferredMessageTone = &tone
		changed = true
	}

	cfg := a.agent.Config()
	if changed {
		cfg, err = a.agent.UpdateConfig(cmd.Context(), update)
		if err != nil {
			return err
		}
	}
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintConfig(cfg)
	}
	return printJSON(cmd.OutOrStdout(), cfg)
}

func runAgentOpportunities(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	opportunities := a.agent.ListOpportunities(oppQuery, oppLimit)
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintOpportunities(opportunities)
	}
	return printJSON(cmd.OutOrStdout(), opportunities)
}
