package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
)

// Date is a calendar date in YYYY-MM-DD form.
type Date struct{ time.Time }

// UnmarshalYAML parses YYYY-MM-DD.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(time.DateOnly, node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Time = t
	return nil
}

// Fixtures is the seed document.
type Fixtures struct {
	Users    []UserFixture    `yaml:"users"`
	Fittings []FittingFixture `yaml:"fittings"`
	Alerts   []AlertFixture   `yaml:"alerts"`
}

type UserFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type FittingFixture struct {
	FittingID       string              `yaml:"fitting_id"`
	FittingType     string              `yaml:"fitting_type"`
	Material        string              `yaml:"material"`
	Specifications  string              `yaml:"specifications"`
	VendorName      string              `yaml:"vendor_name"`
	VendorCode      string              `yaml:"vendor_code"`
	BatchID         string              `yaml:"batch_id"`
	ManufactureDate *Date               `yaml:"manufacture_date"`
	SupplyDate      *Date               `yaml:"supply_date"`
	WarrantyMonths  int                 `yaml:"warranty_months"`
	Status          string              `yaml:"status"`
	Location        string              `yaml:"location"`
	Inspections     []InspectionFixture `yaml:"inspections"`
}

type InspectionFixture struct {
	InspectionDate Date   `yaml:"inspection_date"`
	InspectorName  string `yaml:"inspector_name"`
	Section        string `yaml:"section"`
	KMLocation     string `yaml:"km_location"`
	FaultType      string `yaml:"fault_type"`
	Severity       string `yaml:"severity"`
	Status         string `yaml:"status"`
}

type AlertFixture struct {
	FittingID    string `yaml:"fitting_id"`
	Severity     string `yaml:"severity"`
	FaultType    string `yaml:"fault_type"`
	Location     string `yaml:"location"`
	Inspector    string `yaml:"inspector"`
	Description  string `yaml:"description"`
	AssignedRole string `yaml:"assigned_role"`
}

// LoadFixtures decodes and checks a fixture document. Unknown keys are rejected.
func LoadFixtures(r io.Reader) (Fixtures, error) {
	var fx Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return fx, fx.Validate()
}

// Validate checks roles, severities and references between sections.
func (fx Fixtures) Validate() error {
	var errs []error
	seenUsers := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if strings.TrimSpace(u.Username) == "" || u.Password == "" {
			errs = append(errs, fmt.Errorf("users[%d]: username and password required", i))
		}
		if seenUsers[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		seenUsers[u.Username] = true
		if _, err := rbac.ParseRole(u.Role); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
		}
	}

	fittingIDs := make(map[string]bool, len(fx.Fittings))
	for i, f := range fx.Fittings {
		if strings.TrimSpace(f.FittingID) == "" {
			errs = append(errs, fmt.Errorf("fittings[%d]: fitting_id required", i))
		}
		if fittingIDs[f.FittingID] {
			errs = append(errs, fmt.Errorf("fittings[%d]: duplicate fitting_id %q", i, f.FittingID))
		}
		fittingIDs[f.FittingID] = true
		for j, in := range f.Inspections {
			if _, err := reports.ParseSeverity(in.Severity); err != nil {
				errs = append(errs, fmt.Errorf("fittings[%d].inspections[%d]: %w", i, j, err))
			}
		}
	}

	for i, a := range fx.Alerts {
		if !fittingIDs[a.FittingID] {
			errs = append(errs, fmt.Errorf("alerts[%d]: unknown fitting %q", i, a.FittingID))
		}
		if _, err := reports.ParseSeverity(a.Severity); err != nil {
			errs = append(errs, fmt.Errorf("alerts[%d]: %w", i, err))
		}
		if a.AssignedRole != "" {
			if _, err := rbac.ParseRole(a.AssignedRole); err != nil {
				errs = append(errs, fmt.Errorf("alerts[%d]: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Date) value() any {
	if d == nil {
		return nil
	}
	return d.Time
}
