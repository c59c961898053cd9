package main

import (
	"github.com/jonathan/found/internal/types"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Read public Greenhouse and Lever job feeds",
}

var (
	jobsQuery   string
	jobsCompany string
	jobsLimit   int
)

var jobsDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List postings from the configured feeds without importing them",
	RunE:  runJobsDiscover,
}

var jobsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import feed postings into the job catalog",
	Long:  `Postings already in the catalog (same title and company) are skipped.`,
	RunE:  runJobsImport,
}

func init() {
	for _, c := range []*cobra.Command{jobsDiscoverCmd, jobsImportCmd} {
		c.Flags().StringVarP(&jobsQuery, "query", "q", "", "Match title, company or location")
		c.Flags().StringVar(&jobsCompany, "company", "", "Match company")
		c.Flags().IntVar(&jobsLimit, "limit", 0, "Maximum postings (default 60, at most 200)")
	}
	jobsCmd.AddCommand(jobsDiscoverCmd, jobsImportCmd)
	rootCmd.AddCommand(jobsCmd)
}

func jobsRequest() types.ImportJobsRequest {
	return types.ImportJobsRequest{Query: jobsQuery, Company: jobsCompany, Limit: jobsLimit}
}

func runJobsDiscover(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.feeds.Discover(cmd.Context(), jobsRequest())
	if err != nil {
		return err
	}
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintExternalJobs(result.Jobs)
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runJobsImport(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.feeds.Import(cmd.Context(), jobsRequest())
	if err != nil {
		return err
	}
	if p := printer(cmd.ErrOrStderr()); p != nil {
		p.PrintImport(result.Imported, result.Skipped, result.Jobs)
	}
	return printJSON(cmd.OutOrStdout(), result)
}
