package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"breakeven-analyzer/internal/errors"
	"breakeven-analyzer/internal/models"
	"breakeven-analyzer/pkg/utils"
)

// ParseLeg parses ACTION:TYPE:STRIKE:QTY[@PREMIUM], e.g. SELL:PE:24800:2@55.5.
// Symbol and expiry are shared by every leg of a command.
func ParseLeg(s, symbol string, expiry time.Time) (models.OptionLeg, error) {
	spec, premium, hasPremium := strings.Cut(strings.TrimSpace(s), "@")
	parts := strings.Split(spec, ":")
	if len(parts) != 4 {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, "expected ACTION:TYPE:STRIKE:QTY[@PREMIUM]")
	}

	action, err := models.ParseAction(parts[0])
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, err.Error())
	}
	typ, err := models.ParseOptionType(parts[1])
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, err.Error())
	}
	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, "invalid strike")
	}
	qty, err := strconv.Atoi(parts[3])
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, "invalid quantity")
	}

	leg := models.OptionLeg{
		Symbol:   strings.ToUpper(symbol),
		Expiry:   expiry,
		Strike:   strike,
		Type:     typ,
		Action:   action,
		Quantity: qty,
	}
	if hasPremium {
		p, err := strconv.ParseFloat(premium, 64)
		if err != nil {
			return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, "invalid premium")
		}
		leg = leg.WithPremium(p)
	}
	if err := leg.Validate(); err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", s, err.Error())
	}
	return leg, nil
}

// legsFile is the document accepted by --legs-file, in YAML or JSON.
type legsFile struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Expiry string    `json:"expiry" yaml:"expiry"`
	Legs   []fileLeg `json:"legs" yaml:"legs"`
}

type fileLeg struct {
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Expiry   string   `json:"expiry" yaml:"expiry"`
	Strike   float64  `json:"strike" yaml:"strike"`
	Type     string   `json:"option_type" yaml:"option_type"`
	Action   string   `json:"action" yaml:"action"`
	Quantity int      `json:"quantity" yaml:"quantity"`
	Premium  *float64 `json:"premium" yaml:"premium"`
}

// LoadLegsFile reads legs from a YAML or JSON file. Files ending in .json
// are decoded as JSON, everything else as YAML. Leg fields left empty take
// the document's symbol and expiry.
func LoadLegsFile(path string) ([]models.OptionLeg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInvalidInputError("legs-file", path, err.Error())
	}

	var doc legsFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.NewInvalidInputError("legs-file", path, err.Error())
	}

	legs := make([]models.OptionLeg, 0, len(doc.Legs))
	for i, fl := range doc.Legs {
		leg, err := fl.toLeg(doc.Symbol, doc.Expiry)
		if err != nil {
			return nil, errors.NewLegError(i, fmt.Sprintf("%s:%s:%v:%d", fl.Action, fl.Type, fl.Strike, fl.Quantity), err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func (fl fileLeg) toLeg(symbol, expiry string) (models.OptionLeg, error) {
	if fl.Symbol != "" {
		symbol = fl.Symbol
	}
	if fl.Expiry != "" {
		expiry = fl.Expiry
	}

	action, err := models.ParseAction(fl.Action)
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("action", fl.Action, err.Error())
	}
	typ, err := models.ParseOptionType(fl.Type)
	if err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("option_type", fl.Type, err.Error())
	}
	var exp time.Time
	if expiry != "" {
		if exp, err = utils.ParseDate(expiry); err != nil {
			return models.OptionLeg{}, errors.NewInvalidInputError("expiry", expiry, "invalid date")
		}
	}

	leg := models.OptionLeg{
		Symbol:   strings.ToUpper(symbol),
		Expiry:   exp,
		Strike:   fl.Strike,
		Type:     typ,
		Action:   action,
		Quantity: fl.Quantity,
		Premium:  fl.Premium,
	}
	if err := leg.Validate(); err != nil {
		return models.OptionLeg{}, errors.NewInvalidInputError("leg", leg.String(), err.Error())
	}
	return leg, nil
}

// addLegFlags registers the flags read by legsFromFlags.
func addLegFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("leg", "l", nil, "leg as ACTION:TYPE:STRIKE:QTY[@PREMIUM] (repeatable)")
	cmd.Flags().String("legs-file", "", "YAML or JSON file with the legs")
	cmd.Flags().StringP("symbol", "s", "NIFTY", "underlying symbol")
	cmd.Flags().StringP("expiry", "e", "", "expiry date (YYYY-MM-DD or 31-Jul-2025)")
}

// legsFromFlags collects the legs given on the command line and in
// --legs-file. Missing premiums are left for market data to fill in.
func legsFromFlags(cmd *cobra.Command) ([]models.OptionLeg, error) {
	specs, _ := cmd.Flags().GetStringArray("leg")
	file, _ := cmd.Flags().GetString("legs-file")
	symbol, _ := cmd.Flags().GetString("symbol")

	expiry, err := expiryFlag(cmd, false)
	if err != nil {
		return nil, err
	}

	var legs []models.OptionLeg
	if file != "" {
		if legs, err = LoadLegsFile(file); err != nil {
			return nil, err
		}
	}
	for _, s := range specs {
		leg, err := ParseLeg(s, symbol, expiry)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return nil, errors.ErrNoLegs
	}
	return legs, nil
}

// expiryFlag parses --expiry. Unset is an error only when required.
func expiryFlag(cmd *cobra.Command, required bool) (time.Time, error) {
	return dateFlag(cmd, "expiry", required)
}

func dateFlag(cmd *cobra.Command, name string, required bool) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		if required {
			return time.Time{}, errors.NewInvalidInputError(name, s, "is required")
		}
		return time.Time{}, nil
	}
	t, err := utils.ParseDate(s)
	if err != nil {
		return time.Time{}, errors.NewInvalidInputError(name, s, "invalid date")
	}
	return t, nil
}
