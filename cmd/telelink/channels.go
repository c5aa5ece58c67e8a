package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"telelink/pkg/logger"
	"telelink/pkg/store"
	"telelink/pkg/telegram"
)

// channelsCmd represents the channels command group
var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List scraped channels with message and link counts",
	RunE:  runChannelsList,
}

var channelsClearCmd = &cobra.Command{
	Use:   "clear <channel>",
	Short: "Delete all stored data for a channel, including its cursor",
	Long: `Delete a channel's messages, links, and cursor from the database.

The next scrape of the channel starts from the beginning.`,
	Args: cobra.ExactArgs(1),
	RunE: runChannelsClear,
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List the distinct domains of all stored links",
	RunE:  runDomains,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.AddCommand(channelsClearCmd)
	rootCmd.AddCommand(domainsCmd)
}

func runChannelsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database.Path, logger.GetLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Channels()
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("no channels scraped yet")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tTITLE\tMESSAGES\tLINKS\tLAST SCRAPED")
	for _, cs := range stats {
		name := cs.Channel.Username
		if name == "" {
			name = strconv.FormatInt(cs.Channel.ID, 10)
		} else {
			name = "@" + name
		}
		last := "never"
		if cs.LastScrapedAt != nil {
			last = cs.LastScrapedAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			name, cs.Channel.Title, cs.MessageCount, cs.LinkCount, last)
	}
	return tw.Flush()
}

func runChannelsClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database.Path, logger.GetLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	channelID, err := resolveChannelFlag(st, args[0])
	if err != nil {
		return err
	}
	if channelID == 0 {
		return fmt.Errorf("channel %q not found in the database", args[0])
	}

	if err := st.ClearChannel(channelID); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", args[0])
	return nil
}

func runDomains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database.Path, logger.GetLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	domains, err := st.Domains()
	if err != nil {
		return err
	}
	for _, d := range domains {
		fmt.Println(d)
	}
	return nil
}

// resolveChannelFlag turns a user-supplied channel reference (@username,
// t.me link, or numeric id) into the stored channel id. An empty reference
// resolves to 0, meaning "all channels". A reference that parses but is not
// in the database is an error for commands that need an exact target and 0
// for listing filters, so callers check for 0 where it matters.
func resolveChannelFlag(st *store.Store, ref string) (int64, error) {
	if ref == "" {
		return 0, nil
	}
	username, id, ok := telegram.ParseIdentifier(ref)
	if !ok {
		return 0, fmt.Errorf("cannot parse channel reference %q", ref)
	}
	if id != 0 {
		return id, nil
	}

	stats, err := st.Channels()
	if err != nil {
		return 0, err
	}
	for _, cs := range stats {
		if strings.EqualFold(cs.Channel.Username, username) {
			return cs.Channel.ID, nil
		}
	}
	return 0, fmt.Errorf("channel %q not found in the database", ref)
}
