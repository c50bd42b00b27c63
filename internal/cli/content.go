package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"artist-momentum/internal/app"
	"artist-momentum/internal/storage"
)

var (
	contentArtistID int64
	contentActorID  int64
	contentKind     string
	contentSummary  string
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Fan a comment/rating event out to an artist's subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if contentArtistID <= 0 {
			return fmt.Errorf("--artist is required")
		}

		kind := storage.KindNewComment
		if contentKind == "rating" {
			kind = storage.KindNewRating
		} else if contentKind != "comment" {
			return fmt.Errorf("--kind must be comment or rating")
		}

		opts := app.ContentAlertOptions{
			ArtistID: contentArtistID,
			ActorID:  contentActorID,
			Kind:     kind,
			Summary:  contentSummary,
		}

		return getApp().ContentAlert(cmd.Context(), opts)
	},
}

func init() {
	contentCmd.Flags().Int64Var(&contentArtistID, "artist", 0, "Artist id the event belongs to")
	contentCmd.Flags().Int64Var(&contentActorID, "actor", 0, "User id who caused the event (excluded from fan-out)")
	contentCmd.Flags().StringVar(&contentKind, "kind", "comment", "Event kind: comment or rating")
	contentCmd.Flags().StringVar(&contentSummary, "summary", "", "Short summary included in the notification")
}
