package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"telelink/pkg/export"
	"telelink/pkg/logger"
	"telelink/pkg/store"
)

var (
	// Export command flags
	exportFormat  string
	exportOutput  string
	exportChannel string
	exportFrom    string
	exportTo      string
	exportDomain  string
	exportSearch  string
	exportLimit   int
	exportLinked  bool
)

// exportCmd represents the export command group
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored links or messages as CSV or JSON",
}

var exportLinksCmd = &cobra.Command{
	Use:   "links",
	Short: "Export stored links",
	Example: `  # All links as CSV on stdout
  telelink export links

  # Links from one channel, JSON, into a file
  telelink export links --channel @golang_news --format json -o links.json

  # Only github.com links posted in August 2026
  telelink export links --domain github.com --from 2026-08-01 --to 2026-08-31`,
	RunE: runExportLinks,
}

var exportMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Export stored messages",
	Example: `  # Messages that carry links, as CSV
  telelink export messages --links-only

  # Everything one channel said about releases
  telelink export messages --channel @golang_news --search release --format json`,
	RunE: runExportMessages,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportLinksCmd)
	exportCmd.AddCommand(exportMessagesCmd)

	for _, cmd := range []*cobra.Command{exportLinksCmd, exportMessagesCmd} {
		cmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv or json)")
		cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
		cmd.Flags().StringVar(&exportChannel, "channel", "", "restrict to one channel (@username or id)")
		cmd.Flags().StringVar(&exportFrom, "from", "", "only messages on or after this date (YYYY-MM-DD)")
		cmd.Flags().StringVar(&exportTo, "to", "", "only messages on or before this date (YYYY-MM-DD)")
		cmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows (0 = no limit)")
	}
	exportLinksCmd.Flags().StringVar(&exportDomain, "domain", "", "only links on this domain")
	exportLinksCmd.Flags().StringVar(&exportSearch, "search", "", "only links whose URL contains this text")
	exportMessagesCmd.Flags().StringVar(&exportSearch, "search", "", "only messages whose text contains this text")
	exportMessagesCmd.Flags().BoolVar(&exportLinked, "links-only", false, "only messages that carry a link")
}

func runExportLinks(cmd *cobra.Command, args []string) error {
	st, w, closeAll, err := openExport()
	if err != nil {
		return err
	}
	defer closeAll()

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	from, err := parseDateFlag(exportFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(exportTo)
	if err != nil {
		return err
	}
	channelID, err := resolveChannelFlag(st, exportChannel)
	if err != nil {
		return err
	}

	links, err := st.Links(store.LinkQuery{
		ChannelID: channelID,
		Domain:    exportDomain,
		Search:    exportSearch,
		From:      from,
		To:        to,
		Limit:     exportLimit,
	})
	if err != nil {
		return err
	}
	return export.Links(w, links, format)
}

func runExportMessages(cmd *cobra.Command, args []string) error {
	st, w, closeAll, err := openExport()
	if err != nil {
		return err
	}
	defer closeAll()

	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	from, err := parseDateFlag(exportFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag(exportTo)
	if err != nil {
		return err
	}
	channelID, err := resolveChannelFlag(st, exportChannel)
	if err != nil {
		return err
	}

	q := store.MessageQuery{
		ChannelID: channelID,
		From:      from,
		To:        to,
		Keyword:   exportSearch,
		Limit:     exportLimit,
	}
	if exportLinked {
		hasLink := true
		q.HasLink = &hasLink
	}

	messages, err := st.Messages(q)
	if err != nil {
		return err
	}
	return export.Messages(w, messages, format)
}

// openExport opens the store and the output writer shared by the export
// subcommands.
func openExport() (*store.Store, io.Writer, func(), error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(cfg.Database.Path, logger.GetLogger())
	if err != nil {
		return nil, nil, nil, err
	}

	var w io.Writer = os.Stdout
	var f *os.File
	if exportOutput != "" {
		f, err = os.Create(exportOutput)
		if err != nil {
			st.Close()
			return nil, nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
	}

	closeAll := func() {
		if f != nil {
			f.Close()
		}
		st.Close()
	}
	return st, w, closeAll, nil
}
