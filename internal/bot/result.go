package bot

import (
	"fmt"
	"math"
	"strings"

	"github.com/raine/kasko-bot/internal/vehicle"
)

// formatRecord renders a valuation as a Telegram Markdown message.
func formatRecord(rec vehicle.Record) string {
	lines := []string{
		fmt.Sprintf(MsgResultHeaderFmt, escapeMarkdown(rec.Make), escapeMarkdown(rec.Model), rec.Year),
	}
	if rec.FuelType != "" {
		lines = append(lines, fmt.Sprintf(MsgResultFuelFmt, escapeMarkdown(rec.FuelType)))
	}
	if rec.ChassisLast4 != "" {
		lines = append(lines, fmt.Sprintf(MsgResultChassisFmt, rec.ChassisLast4))
	}

	lines = append(lines, fmt.Sprintf(MsgResultValueFmt, formatValue(rec)))

	var source string
	if rec.IsOfficialData {
		source = fmt.Sprintf(MsgSourceOfficial, escapeMarkdown(rec.OfficialVariant))
	} else {
		source = fmt.Sprintf(MsgSourceEstimate, int(math.Round(rec.ConfidenceScore*100)))
	}
	lines = append(lines, fmt.Sprintf(MsgResultSourceFmt, source))

	if rec.Description != "" {
		lines = append(lines, "", escapeMarkdown(rec.Description))
	}
	lines = append(lines, "", MsgResultNewQueryTip)

	return strings.Join(lines, "\n")
}

func formatValue(rec vehicle.Record) string {
	if math.Round(rec.EstimatedValueMin) == math.Round(rec.EstimatedValueMax) {
		return formatTRY(rec.EstimatedValueMin)
	}
	return fmt.Sprintf(MsgValueRangeFmt, formatTRY(rec.EstimatedValueMin), formatTRY(rec.EstimatedValueMax))
}
