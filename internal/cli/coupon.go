package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCouponCmd создаёт группу команд для купонов.
func NewCouponCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon",
		Short: "Inspect coupon dispatch",
	}

	cmd.AddCommand(newCouponGrantsCmd(clientFn, outputFn))

	return cmd
}

func newCouponGrantsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "grants COUPON_ID",
		Short: "List grants issued for a coupon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			couponID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid coupon id %q", args[0])
			}

			grants, err := client.ListGrants(couponID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(grants))
			for i, g := range grants {
				rows[i] = []string{
					g.ID, strconv.FormatInt(g.MemberID, 10), g.Status, g.VerificationCode, g.AssignedAt,
				}
			}

			out.Print([]string{"ID", "MEMBER_ID", "STATUS", "CODE", "ASSIGNED"}, rows, grants)
			return nil
		},
	}
}
