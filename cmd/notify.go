/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/evently/apiserver/config"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/internal/mq"
	"github.com/evently/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// notifyCmd consumes lifecycle notifications and logs them.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Print event and user notifications published by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := sl.New(cfg.Env)

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		log.Info("listening for notifications", slog.String("backend", cfg.MQ.Backend), slog.String("topic", cfg.MQ.Topic))
		err = broker.Subscribe(cmd.Context(), cfg.MQ.Topic, func(ctx context.Context, msg mq.Message) error {
			note, err := notify.Decode(msg)
			if err != nil {
				// Malformed payloads are dropped rather than redelivered.
				log.Warn("skipping notification", sl.Err(err))
				return nil
			}
			log.Info("notification",
				slog.String("kind", note.Kind),
				slog.String("subject_id", note.SubjectID),
				slog.String("actor_id", note.ActorID),
				slog.String("title", note.Title),
				slog.Time("occurred_at", note.OccurredAt),
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
