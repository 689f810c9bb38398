package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Prompter asks numbered multiple-choice questions on a terminal.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Choose asks question until the answer is one of 1..n.
func (p *Prompter) Choose(question string, n int) (int, error) {
	for {
		fmt.Fprint(p.out, question)
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return 0, errs.Wrap(err, errs.CodeIO, "read answer")
			}
			return 0, errs.New(errs.CodeCanceled, "input closed before a valid answer was given")
		}
		v, err := strconv.Atoi(strings.TrimSpace(p.in.Text()))
		if err == nil && v >= 1 && v <= n {
			return v, nil
		}
		fmt.Fprintf(p.out, "Please try again. Enter either %s. Use ctrl-c to exit.\n", choiceList(n))
	}
}

// choiceList renders 1..n as "1 or 2" or "1, 2, or 3".
func choiceList(n int) string {
	if n == 2 {
		return "1 or 2"
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(parts[:n-1], ", ") + ", or " + parts[n-1]
}

const (
	dataQuestion = "Enter 1 for energy, stock, and square footage data\n" +
		" or 2 for cost, performance, lifetime data: "
	geoQuestion = "\nEnter 1 to use an AIA climate zone geographical breakdown,\n" +
		" 2 to use an EIA Electricity Market Module geographical breakdown,\n" +
		" or 3 to use a state geographical breakdown: "
	fuelQuestion = "\nEnter 1 to use detailed disaggregation data for electricity only, " +
		"or 2 to use detailed disaggregation data for all fuels. " +
		"Note: detailed disaggregation data are drawn from ResStock and ComStock datasets " +
		"and otherwise disaggregation data are based on county-level population totals.\n"
	detailQuestion = "\nEnter 1 to base detailed electricity disaggregation on technology-level data, " +
		"or 2 to base detailed electricity disaggregation on end-use-level data.\n"
)

//Personal.AI order the ending
