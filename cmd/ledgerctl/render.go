package main

import (
	"strconv"
	"strings"

	"creator-ledger/internal/services"

	"github.com/pterm/pterm"
)

func yesNo(ok bool) string {
	if ok {
		return pterm.LightGreen("yes")
	}
	return pterm.LightRed("no")
}

func renderChain(result *services.ChainVerification) {
	data := pterm.TableData{
		{"Field", "Value"},
		{"Valid", yesNo(result.IsValid)},
		{"Checked blocks", strconv.Itoa(result.CheckedCount)},
		{"Last block", result.LastBlockID},
		{"Invalid blocks", strings.Join(result.InvalidBlockIDs, "\n")},
	}
	if result.BrokenChainAt != nil {
		data = append(data, []string{"Broken at",
			result.BrokenChainAt.BlockID + " (sequence " + strconv.FormatInt(result.BrokenChainAt.Sequence, 10) + ")"})
	}
	if result.NextFromBlockID != "" {
		data = append(data, []string{"Resume from", result.NextFromBlockID})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if result.IsValid {
		pterm.Success.Println("Chain segment is intact")
	} else {
		pterm.Error.Println("Chain integrity failure, do not repair without an audited procedure")
	}
}

func renderTransaction(result *services.VerificationResult) {
	data := pterm.TableData{
		{"Field", "Value"},
		{"Transaction", result.TransactionID},
		{"Ledger id", result.LedgerID},
		{"Block", result.BlockID},
		{"Hash matches", yesNo(result.HashMatches)},
		{"Block valid", yesNo(result.BlockValid)},
		{"Data matches", yesNo(result.DataMatches)},
		{"History consistent", yesNo(result.HistoryConsistent)},
	}
	if len(result.Mismatches) > 0 {
		data = append(data, []string{"Mismatched fields", strings.Join(result.Mismatches, ", ")})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if result.IsValid {
		pterm.Success.Printfln("Transaction %s is valid", result.TransactionID)
	} else {
		pterm.Error.Printfln("Transaction %s failed verification", result.TransactionID)
	}
}
