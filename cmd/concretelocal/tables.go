package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabeth/concretelocal/models"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "manage table definitions",
}

var tablesListCmd = &cobra.Command{
	Use:   "list",
	Short: "list table names",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		names, err := svc.ListTables(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create <definition.json>",
	Short: "create a table from a JSON definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var table models.Table
		if err := json.Unmarshal(data, &table); err != nil {
			return fmt.Errorf("parsing definition: %w", err)
		}
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		created, err := svc.CreateTable(cmd.Context(), &table)
		if err != nil {
			return err
		}
		fmt.Printf("created table %s\n", created.TableName)
		return nil
	},
}

var tablesDescribeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "print a table definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		table, err := svc.DescribeTable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var tablesDeleteCmd = &cobra.Command{
	Use:   "delete <table>",
	Short: "delete a table and all its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, st, err := openService(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := svc.DeleteTable(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted table %s\n", args[0])
		return nil
	},
}

func init() {
	tablesCmd.AddCommand(tablesListCmd, tablesCreateCmd, tablesDescribeCmd, tablesDeleteCmd)
}
