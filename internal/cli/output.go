package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Output formats results as text or JSON
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
		return
	}
	o.printText(data)
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(o.w, msg)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Identity:
		o.printIdentity(v)
	case Lobby:
		o.printLobby(v)
	case []Lobby:
		o.printLobbies(v)
	case User:
		o.printUsers([]User{v})
	case []User:
		o.printUsers(v)
	case HealthResult:
		fmt.Fprintf(o.w, "Server status: %s\n", v.Status)
	default:
		o.printJSON(data)
	}
}

// Identity response type
type Identity struct {
	Identity string `json:"identity"`
	Token    string `json:"token,omitempty"`
}

// Lobby response type
type Lobby struct {
	Code      string    `json:"code"`
	Red       *string   `json:"red"`
	Blue      *string   `json:"blue"`
	RedCount  uint32    `json:"red_count"`
	BlueCount uint32    `json:"blue_count"`
	Created   time.Time `json:"created"`
}

// User response type
type User struct {
	Identity string  `json:"identity"`
	Name     *string `json:"name"`
	Online   bool    `json:"online"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printIdentity(v Identity) {
	fmt.Fprintf(o.w, "Identity: %s\n", v.Identity)
	if v.Token != "" {
		fmt.Fprintf(o.w, "Token:    %s\n", v.Token)
	}
}

func slotText(id *string) string {
	if id == nil {
		return "(empty)"
	}
	return *id
}

func (o *Output) printLobby(l Lobby) {
	fmt.Fprintf(o.w, "Lobby: %s\n", l.Code)
	fmt.Fprintf(o.w, "  Red:  %s  count=%d\n", slotText(l.Red), l.RedCount)
	fmt.Fprintf(o.w, "  Blue: %s  count=%d\n", slotText(l.Blue), l.BlueCount)
	fmt.Fprintf(o.w, "  Created: %s\n", l.Created.Format(time.RFC3339))
}

func (o *Output) printLobbies(ls []Lobby) {
	if len(ls) == 0 {
		fmt.Fprintln(o.w, "No lobbies")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tRED\tBLUE\tRED COUNT\tBLUE COUNT")
	for _, l := range ls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", l.Code, slotText(l.Red), slotText(l.Blue), l.RedCount, l.BlueCount)
	}
	_ = tw.Flush()
}

func (o *Output) printUsers(us []User) {
	if len(us) == 0 {
		fmt.Fprintln(o.w, "No users")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTITY\tNAME\tSTATUS")
	for _, u := range us {
		name := "-"
		if u.Name != nil {
			name = *u.Name
		}
		status := "offline"
		if u.Online {
			status = "online"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Identity, name, status)
	}
	_ = tw.Flush()
}
