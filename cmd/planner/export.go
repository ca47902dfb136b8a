package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shift-planner/internal/export"
)

func newExportCmd(c *cli) *cobra.Command {
	var team, start, end, out string

	cmd := &cobra.Command{
		Use:   "export --team ops --start 2024-05-01 --end 2024-05-31",
		Short: "导出指定区间的排班",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			table, span, err := a.schedules.ExportTable(cmd.Context(), team, start, end)
			if err != nil {
				return err
			}
			if out == "" {
				out = export.Filename(span) + "." + export.XLSX.Ext
			}
			if err := writeTable(out, table, c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "团队（默认 default）")
	cmd.Flags().StringVar(&start, "start", "", "开始日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "结束日期 YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件（默认 排班_开始_结束.xlsx）")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
