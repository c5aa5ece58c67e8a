package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"telelink/pkg/extract"
	"telelink/pkg/htmlimport"
	"telelink/pkg/logger"
	"telelink/pkg/models"
	"telelink/pkg/store"
	"telelink/pkg/telegram"
)

var (
	// Import command flags
	importUsername string
	importTitle    string
	importID       int64
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <messages.html>...",
	Short: "Import messages from a Telegram Desktop HTML export",
	Long: `Import messages from the HTML files produced by Telegram Desktop's
"Export chat history" feature.

Imported messages go through the same link extraction and storage as
scraped ones and advance the channel's cursor, so a later scrape of the
same channel continues past the imported history.`,
	Example: `  # Import a two-file export under its channel's username
  telelink import --channel @golang_news messages.html messages2.html

  # Import a private channel under an explicit numeric id
  telelink import --channel-id 1234567890 --title "Team log" messages.html`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importUsername, "channel", "", "channel username to file the import under")
	importCmd.Flags().Int64Var(&importID, "channel-id", 0, "explicit channel id (for channels without a username)")
	importCmd.Flags().StringVar(&importTitle, "title", "", "channel title to store")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importUsername == "" && importID == 0 {
		return fmt.Errorf("either --channel or --channel-id is required")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	st, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ch := models.Channel{ID: importID, Username: importUsername, Title: importTitle}
	if ch.Username != "" {
		if username, _, ok := telegram.ParseIdentifier(ch.Username); ok && username != "" {
			ch.Username = username
		}
	}
	if ch.ID == 0 {
		ch.ID = telegram.ChannelIDForUsername(ch.Username)
	}
	if ch.Title == "" {
		ch.Title = ch.Username
	}
	if err := st.UpsertChannel(ch); err != nil {
		return err
	}

	var totalMessages, totalLinks int
	for _, path := range args {
		messages, err := htmlimport.ParseFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if len(messages) == 0 {
			log.WithField("file", path).Warn("no messages found in export file")
			continue
		}

		// One commit per file keeps partially-imported multi-file exports
		// resumable the same way scrape pages are.
		write := store.PageWrite{ChannelID: ch.ID, NewCursor: messages[len(messages)-1].ID}
		for _, msg := range messages {
			links := extract.Extract(msg)
			write.Messages = append(write.Messages, models.Message{
				ChannelID: ch.ID,
				MessageID: msg.ID,
				Date:      msg.Date,
				Text:      msg.Text,
				HasLink:   len(links) > 0,
			})
			for _, l := range links {
				l.ChannelID = ch.ID
				write.Links = append(write.Links, l)
			}
		}

		result, err := st.CommitPage(write)
		if err != nil {
			return err
		}
		totalMessages += result.MessagesInserted
		totalLinks += result.LinksInserted

		log.InfoWithFields("export file imported", map[string]interface{}{
			"file":     path,
			"messages": result.MessagesInserted,
			"links":    result.LinksInserted,
		})
	}

	fmt.Printf("imported %d new messages, %d new links\n", totalMessages, totalLinks)
	return nil
}
