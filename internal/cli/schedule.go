package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления расписанием.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled actions",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleCancelCmd(clientFn, outputFn),
		newScheduleRescheduleCmd(clientFn, outputFn),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "TYPE", "CONTENT_ID", "PARAM", "SCHEDULED", "STATUS", "ATTEMPTS", "ERROR"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.ContentType, strconv.FormatInt(s.ContentID, 10), s.ActionParameter,
		s.ScheduledTime, s.Status, strconv.Itoa(s.Attempts), scheduleError(s),
	}
}

// scheduleError — причина failed, а для pending ошибка последней попытки.
func scheduleError(s ScheduleResponse) string {
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}
	return s.LastError
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(contentType)
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = scheduleRow(s)
			}

			out.Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "Filter by content type (post, notification, coupon)")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contentType string
	var contentID int64
	var at string
	var param string
	var by int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule an action on a content item",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			scheduledTime, err := parseAt(at, time.Now())
			if err != nil {
				return err
			}

			schedule, err := client.CreateSchedule(CreateScheduleRequest{
				ContentType:     contentType,
				ContentID:       contentID,
				ScheduledTime:   scheduledTime,
				CreatedBy:       by,
				ActionParameter: param,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "", "Content type: post, notification, coupon (required)")
	cmd.Flags().Int64Var(&contentID, "content-id", 0, "Content ID (required)")
	cmd.Flags().StringVar(&at, "at", "", "Execution time: RFC3339 or +DURATION, e.g. +2h (required)")
	cmd.Flags().StringVar(&param, "param", "", "Action parameter; for coupons 'all' or a level ID")
	cmd.Flags().Int64Var(&by, "by", 0, "ID of the user creating the schedule")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("content-id")
	cmd.MarkFlagRequired("at")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			headers := append(append([]string{}, scheduleHeaders...), "CREATED", "EXECUTED")
			row := append(scheduleRow(*schedule), schedule.CreatedAt, schedule.ExecutedAt)
			out.Print(headers, [][]string{row}, schedule)
			return nil
		},
	}
}

func newScheduleCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cancelled, err := client.CancelSchedule(args[0])
			if err != nil {
				return err
			}
			if !cancelled {
				return fmt.Errorf("schedule %s was not cancelled: not found or no longer pending", args[0])
			}

			out.Success(fmt.Sprintf("Schedule cancelled: %s", args[0]))
			return nil
		},
	}
}

func newScheduleRescheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var at string
	var by int64

	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move a pending schedule to a new time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			scheduledTime, err := parseAt(at, time.Now())
			if err != nil {
				return err
			}

			schedule, err := client.RescheduleSchedule(args[0], RescheduleRequest{
				ScheduledTime: scheduledTime,
				By:            by,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule %s replaced by %s", args[0], schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "New execution time: RFC3339 or +DURATION (required)")
	cmd.Flags().Int64Var(&by, "by", 0, "ID of the user rescheduling")
	cmd.MarkFlagRequired("at")

	return cmd
}

// parseAt разбирает время: RFC3339 или смещение "+2h30m" от now.
func parseAt(s string, now time.Time) (time.Time, error) {
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --at offset %q: %w", s, err)
		}
		return now.Add(d).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q, expected RFC3339 or +DURATION", s)
	}
	return t, nil
}
