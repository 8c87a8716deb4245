package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabeth/concretelocal/models"
)

var ttlCmd = &cobra.Command{
	Use:   "ttl",
	Short: "manage TTL configuration",
}

var ttlDescribeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "show a table's TTL setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		desc, err := svc.DescribeTimeToLive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if desc.AttributeName != "" {
			fmt.Printf("%s (%s)\n", desc.Status, desc.AttributeName)
		} else {
			fmt.Println(desc.Status)
		}
		return nil
	},
}

var ttlUpdateCmd = &cobra.Command{
	Use:   "update <table>",
	Short: "enable or disable TTL on a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		spec := models.TimeToLiveSpecification{
			AttributeName: viper.GetString("attribute"),
			Enabled:       viper.GetBool("enabled"),
		}
		desc, err := svc.UpdateTimeToLive(cmd.Context(), args[0], spec)
		if err != nil {
			return err
		}
		fmt.Printf("TTL on %s is now %s\n", args[0], desc.Status)
		return nil
	},
}

// exportCmd writes one wire-encoded item per line, the format importCmd
// reads back.
var exportCmd = &cobra.Command{
	Use:   "export <table>",
	Short: "export a table's items as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		w := bufio.NewWriter(os.Stdout)
		defer w.Flush()
		return svc.ExportItems(cmd.Context(), args[0], func(item models.Item) error {
			line, err := models.SerializeItem(item)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			return w.WriteByte('\n')
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <table> <items.jsonl>",
	Short: "bulk-load JSON-line items into a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		var items []models.Item
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			item, err := models.DeserializeItem(line)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			items = append(items, item)
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := svc.ImportItems(cmd.Context(), args[0], items)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d items into %s\n", n, args[0])
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep [table]",
	Short: "delete expired items now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		n, err := svc.RunTTLSweep(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d expired items\n", n)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs [table]",
	Short: "list background maintenance runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		runs, err := svc.ListBackgroundRuns(cmd.Context(), name)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	ttlUpdateCmd.Flags().String("attribute", "", "expiry attribute name")
	ttlUpdateCmd.Flags().Bool("enabled", false, "enable TTL")
	ttlCmd.AddCommand(ttlDescribeCmd, ttlUpdateCmd)
}
