package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/d1childress/ccmanager/internal/auth"
	"github.com/d1childress/ccmanager/pkg/models"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// RepositoryTable lists repositories, marking the selected one
func RepositoryTable(w io.Writer, repos []models.Repository, selectedID string) {
	table := newTable(w, []string{"", "Repository", "Language", "Stars", "Visibility", "Local Path"})
	for _, r := range repos {
		marker := ""
		if r.ID == selectedID {
			marker = color.GreenString("*")
		}
		visibility := "public"
		if r.Private {
			visibility = color.YellowString("private")
		}
		local := r.LocalPath
		if local == "" {
			local = color.HiBlackString("-")
		}
		language := r.Language
		if language == "" {
			language = "-"
		}
		table.Append([]string{marker, r.FullName, language, FormatCount(r.StargazersCount), visibility, local})
	}
	table.Render()
}

// ChangeTable lists working copy changes
func ChangeTable(w io.Writer, changes []models.FileChange) {
	table := newTable(w, []string{"Status", "Path", "Lines"})
	for _, c := range changes {
		table.Append([]string{FormatChangeKind(c.Kind), c.Path, FormatFileChange(c.Additions, c.Deletions)})
	}
	table.Render()
}

// AuthTable lists the authentication state of every provider
func AuthTable(w io.Writer, states []auth.State) {
	table := newTable(w, []string{"Provider", "Status", "Account"})
	for _, s := range states {
		status := color.RedString(s.Status.String())
		if s.IsAuthenticated() {
			status = color.GreenString(s.Status.String())
		}
		account := s.Metadata.Username
		if s.Metadata.OrganizationID != "" {
			account = fmt.Sprintf("%s (%s)", account, s.Metadata.OrganizationID)
		}
		table.Append([]string{string(s.Provider), status, account})
	}
	table.Render()
}

// CommandTable lists session commands
func CommandTable(w io.Writer, cmds []models.AgentCommand) {
	table := newTable(w, []string{"#", "Agent", "Status", "Command", "Detail"})
	for i, c := range cmds {
		detail := c.Error
		if detail == "" {
			detail = truncate(firstLine(c.Output), 60)
		}
		table.Append([]string{strconv.Itoa(i + 1), string(c.Provider), FormatCommandStatus(c.Status), truncate(c.Text, 40), detail})
	}
	table.Render()
}

// UsageRow is one line of a usage series
type UsageRow struct {
	Date  string
	Value string
}

// UsageTable renders a usage series under a metric heading
func UsageTable(w io.Writer, metric string, rows []UsageRow) {
	table := newTable(w, []string{"Date", metric})
	for _, r := range rows {
		table.Append([]string{r.Date, r.Value})
	}
	table.Render()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
