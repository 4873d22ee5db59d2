// internal/models/themes.go
package models

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxThemeNameLength = 100
const darkTextColor = "#000000"
const lightTextColor = "#FFFFFF"
const defaultThemePrimary = "#1f2937"
const defaultThemeSecondary = "#e5e7eb"
const defaultThemeAccent = "#2563eb"
const defaultThemeBackground = "#f9fafb"
const defaultThemeText = "#111827"
const defaultThemeFont = "system-ui, sans-serif"

var hexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
var fontFamilyRegex = regexp.MustCompile(`^[A-Za-z0-9 ,'"-]+$`)

// ChangeType names the mutation that produced a history entry.
type ChangeType string

const (
	ChangeCreated   ChangeType = "created"
	ChangeUpdated   ChangeType = "updated"
	ChangeActivated ChangeType = "activated"
	ChangeReverted  ChangeType = "reverted"
)

func IsHexColor(value string) bool {
	return hexColorRegex.MatchString(strings.TrimSpace(value))
}

// IsFontFamily reports whether value is safe to place in a CSS font-family declaration.
func IsFontFamily(value string) bool {
	return fontFamilyRegex.MatchString(strings.TrimSpace(value))
}

// ThemeStyle is the colour/style document carried by a theme. Empty fields fall
// back to the site defaults when rendered.
type ThemeStyle struct {
	Primary    string `json:"primary,omitempty" bson:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty" bson:"secondary,omitempty"`
	Accent     string `json:"accent,omitempty" bson:"accent,omitempty"`
	Background string `json:"background,omitempty" bson:"background,omitempty"`
	Text       string `json:"text,omitempty" bson:"text,omitempty"`
	Font       string `json:"font,omitempty" bson:"font,omitempty"`
}

type Theme struct {
	ID         string `json:"id" bson:"_id"`
	Name       string `json:"name" bson:"name"`
	ThemeStyle `bson:",inline"`
	IsActive   bool      `json:"isActive" bson:"is_active"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

// ThemeInput is the writable part of a theme as accepted by create and update.
type ThemeInput struct {
	Name       string `json:"name"`
	ThemeStyle
	IsActive bool `json:"isActive"`
}

// ThemeSnapshot is the state of a theme captured in a history entry.
type ThemeSnapshot struct {
	Name       string `json:"name" bson:"name"`
	ThemeStyle `bson:",inline"`
	IsActive   bool `json:"isActive" bson:"is_active"`
}

type HistoryEntry struct {
	ID         string        `json:"id" bson:"_id"`
	ThemeID    string        `json:"themeId" bson:"theme_id"`
	ChangeType ChangeType    `json:"changeType" bson:"change_type"`
	Snapshot   ThemeSnapshot `json:"snapshot" bson:"snapshot"`
	CreatedAt  time.Time     `json:"createdAt" bson:"created_at"`
}

func DefaultTheme() Theme {
	return Theme{
		Name: "Default",
		ThemeStyle: ThemeStyle{
			Primary:    defaultThemePrimary,
			Secondary:  defaultThemeSecondary,
			Accent:     defaultThemeAccent,
			Background: defaultThemeBackground,
			Text:       defaultThemeText,
			Font:       defaultThemeFont,
		},
	}
}

func (t Theme) Snapshot() ThemeSnapshot {
	return ThemeSnapshot{
		Name:       t.Name,
		ThemeStyle: t.ThemeStyle,
		IsActive:   t.IsActive,
	}
}

// FirstActive returns the first theme flagged active, or nil. Stores keep at most
// one theme active; when rows written elsewhere break that, the earliest match wins.
func FirstActive(themes []Theme) *Theme {
	for i := range themes {
		if themes[i].IsActive {
			active := themes[i]
			return &active
		}
	}
	return nil
}

// Validate checks an input for the update path. Create accepts any parsed payload.
func (in ThemeInput) Validate() error {
	trimmedName := strings.TrimSpace(in.Name)
	if trimmedName == "" {
		return fmt.Errorf("name is required")
	}
	if len(trimmedName) > maxThemeNameLength {
		return fmt.Errorf("name must be %d characters or fewer", maxThemeNameLength)
	}

	colorFields := []struct {
		name  string
		value string
	}{
		{"primary", in.Primary},
		{"secondary", in.Secondary},
		{"accent", in.Accent},
		{"background", in.Background},
		{"text", in.Text},
	}
	for _, field := range colorFields {
		if field.value == "" {
			continue
		}
		if !IsHexColor(field.value) {
			return fmt.Errorf("%s must be a hex color like #AABBCC or #ABC", field.name)
		}
	}
	if in.Font != "" && !IsFontFamily(in.Font) {
		return fmt.Errorf("font may only contain letters, numbers, spaces, commas, quotes, and hyphens")
	}
	return nil
}

// ReadableTextColor picks black or white text, whichever contrasts more with background.
func ReadableTextColor(background string) string {
	darkRatio, err := contrastRatio(darkTextColor, background)
	if err != nil {
		return darkTextColor
	}
	lightRatio, err := contrastRatio(lightTextColor, background)
	if err != nil {
		return darkTextColor
	}
	if lightRatio > darkRatio {
		return lightTextColor
	}
	return darkTextColor
}

func contrastRatio(textColor, backgroundColor string) (float64, error) {
	textL, err := relativeLuminance(textColor)
	if err != nil {
		return 0, err
	}
	backgroundL, err := relativeLuminance(backgroundColor)
	if err != nil {
		return 0, err
	}
	lightest := math.Max(textL, backgroundL)
	darkest := math.Min(textL, backgroundL)
	return (lightest + 0.05) / (darkest + 0.05), nil
}

func relativeLuminance(hexColor string) (float64, error) {
	r, g, b, err := parseHexColor(hexColor)
	if err != nil {
		return 0, err
	}
	return 0.2126*srgbToLinear(r) + 0.7152*srgbToLinear(g) + 0.0722*srgbToLinear(b), nil
}

func parseHexColor(hexColor string) (float64, float64, float64, error) {
	hexColor = strings.TrimSpace(hexColor)
	if !hexColorRegex.MatchString(hexColor) {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %s", hexColor)
	}

	hex := strings.TrimPrefix(hexColor, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %s", hexColor)
	}

	r := float64((value >> 16) & 0xFF)
	g := float64((value >> 8) & 0xFF)
	b := float64(value & 0xFF)

	return r / 255, g / 255, b / 255, nil
}

func srgbToLinear(value float64) float64 {
	if value <= 0.03928 {
		return value / 12.92
	}
	return math.Pow((value+0.055)/1.055, 2.4)
}
