package controller

import (
	"time"

	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/session"
)

// StateView renders states through an output formatter: a labeled block in
// text mode, one JSON document per state otherwise.
type StateView struct {
	out *output.Formatter
	// Symbol follows the balance in text mode.
	Symbol string
}

// NewStateView creates a view writing to out.
func NewStateView(out *output.Formatter) *StateView {
	return &StateView{out: out, Symbol: "ETH"}
}

// stateOutput adds the formatted balance to the JSON form of a state.
type stateOutput struct {
	session.State

	BalanceFormatted string `json:"balance,omitempty"`
}

// MarshalJSON merges the formatted balance into the state's own encoding.
func (s stateOutput) MarshalJSON() ([]byte, error) {
	base, err := s.State.MarshalJSON()
	if err != nil || s.BalanceFormatted == "" {
		return base, err
	}
	extra := `,"balance":"` + s.BalanceFormatted + `"}`
	return append(base[:len(base)-1], extra...), nil
}

// Render writes st.
func (v *StateView) Render(st session.State) error {
	if v.out.IsJSON() {
		out := stateOutput{State: st}
		if st.Balance != nil {
			out.BalanceFormatted = output.FormatEther(st.Balance)
		}
		return v.out.Print(out)
	}

	fields := output.NewFields().
		Add("Session", st.ID).
		Add("Status", st.Status.String()).
		Add("Address", st.Address)

	if st.Balance != nil {
		fields.Add("Balance", output.FormatEther(st.Balance)+" "+v.Symbol).
			Add("Wei", st.Balance.String()).
			Add("Updated", st.BalanceUpdatedAt.Local().Format(time.DateTime))
	} else if st.Connected() {
		fields.Add("Balance", "")
	}
	if st.Err != nil {
		fields.Add("Error", st.Err.Error())
	}

	if err := fields.Render(v.out.Writer()); err != nil {
		return err
	}
	return v.out.Printf("\n")
}
