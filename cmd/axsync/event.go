package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/ui"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage calendar events",
}

var (
	eventAddAt       string
	eventAddEnd      string
	eventAddLocation string
	eventAddCategory string
	eventAddDesc     string
)

var eventAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a calendar event",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		if eventAddAt == "" {
			fatalf("--at is required")
		}
		start, err := parseDue(eventAddAt)
		if err != nil {
			fatalf("%v", err)
		}

		e := &model.Event{
			Title:       strings.Join(args, " "),
			Description: eventAddDesc,
			StartTime:   start,
			Location:    eventAddLocation,
			Category:    eventAddCategory,
		}
		if eventAddEnd != "" {
			end, err := parseDue(eventAddEnd)
			if err != nil {
				fatalf("%v", err)
			}
			e.EndTime = &end
		}

		outcome, err := a.events.Create(ctx, e)
		if err != nil {
			fatalf("failed to create event: %v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("event %d %q", e.ID, e.Title))
	},
}

var eventListDays int

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events from the local cache",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		var events []*model.Event
		if eventListDays > 0 {
			events, err = a.events.Upcoming(ctx, time.Duration(eventListDays)*24*time.Hour)
		} else {
			events, err = a.events.List(ctx, cache.EventFilter{})
		}
		if err != nil {
			fatalf("failed to list events: %v", err)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return
		}
		for _, e := range events {
			printEvent(e)
		}
	},
}

var eventRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		id := parseID(args[0])
		outcome, err := a.events.Delete(ctx, id)
		if err != nil {
			fatalf("%v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("event %d deleted", id))
	},
}

func printEvent(e *model.Event) {
	line := fmt.Sprintf("%s %d %s", e.StartTime.Format("2006-01-02 15:04"), e.ID, e.Title)
	if e.Location != "" {
		line += " " + ui.RenderDim("@ "+e.Location)
	}
	if !e.Synced {
		line += " " + ui.RenderWarn("*")
	}
	fmt.Println(line)
}

func init() {
	eventAddCmd.Flags().StringVar(&eventAddAt, "at", "", "start time (natural language or RFC 3339)")
	eventAddCmd.Flags().StringVar(&eventAddEnd, "end", "", "end time")
	eventAddCmd.Flags().StringVar(&eventAddLocation, "location", "", "location")
	eventAddCmd.Flags().StringVar(&eventAddCategory, "category", "", "category label")
	eventAddCmd.Flags().StringVar(&eventAddDesc, "desc", "", "description")

	eventListCmd.Flags().IntVar(&eventListDays, "days", 0, "only events in the next N days")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventListCmd)
	eventCmd.AddCommand(eventRmCmd)
	rootCmd.AddCommand(eventCmd)
}
