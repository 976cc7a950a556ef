// Package catalog загружает справочники (товары, покупатели, продавцы) из YAML.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

// Fixture описывает содержимое catalog.yaml.
type Fixture struct {
	Products  []ProductFixture  `yaml:"products"`
	Customers []CustomerFixture `yaml:"customers"`
	Employees []EmployeeFixture `yaml:"employees"`
}

type ProductFixture struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Цена строкой, чтобы YAML не превратил её в float.
	Price    string `yaml:"price"`
	Stock    int64  `yaml:"stock"`
	Inactive bool   `yaml:"inactive"`
}

type CustomerFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Address  string `yaml:"address"`
	Inactive bool   `yaml:"inactive"`
}

type EmployeeFixture struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Inactive  bool   `yaml:"inactive"`
}

// Summary считает загруженные записи.
type Summary struct {
	Products  int
	Customers int
	Employees int
}

// LoadFile читает и валидирует фикстуру с диска.
func LoadFile(path string) (Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("open catalog fixture: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode разбирает YAML; неизвестные поля считаются ошибкой.
func Decode(r io.Reader) (Fixture, error) {
	var fx Fixture

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("decode catalog fixture: %w", err)
	}

	if err := fx.Validate(); err != nil {
		return Fixture{}, err
	}
	return fx, nil
}

// Validate проверяет обязательные поля и уникальность id.
func (fx Fixture) Validate() error {
	var errs []error

	seen := make(map[string]struct{})
	unique := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%w: %s id is required", domain.ErrInvalidArgument, kind))
			return
		}
		key := kind + "/" + id
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate %s %q", domain.ErrInvalidArgument, kind, id))
		}
		seen[key] = struct{}{}
	}

	for _, p := range fx.Products {
		unique("product", p.ID)
		price, err := decimal.NewFromString(p.Price)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%w: product %q price %q", domain.ErrInvalidArgument, p.ID, p.Price))
		case price.IsNegative():
			errs = append(errs, fmt.Errorf("%w: product %q price is negative", domain.ErrInvalidArgument, p.ID))
		}
	}
	for _, c := range fx.Customers {
		unique("customer", c.ID)
	}
	for _, e := range fx.Employees {
		unique("employee", e.ID)
	}

	return errors.Join(errs...)
}

// Apply записывает фикстуру в хранилище. Повторный вызов перезаписывает записи.
func (fx Fixture) Apply(ctx context.Context, w domain.CatalogWriter) (Summary, error) {
	var sum Summary

	for _, c := range fx.Customers {
		err := w.UpsertCustomer(ctx, domain.Customer{
			ID:      c.ID,
			Name:    c.Name,
			Email:   c.Email,
			Phone:   c.Phone,
			Address: c.Address,
			Active:  !c.Inactive,
		})
		if err != nil {
			return sum, fmt.Errorf("upsert customer %s: %w", c.ID, err)
		}
		sum.Customers++
	}

	for _, e := range fx.Employees {
		err := w.UpsertEmployee(ctx, domain.Employee{
			ID:        e.ID,
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Email:     e.Email,
			Active:    !e.Inactive,
		})
		if err != nil {
			return sum, fmt.Errorf("upsert employee %s: %w", e.ID, err)
		}
		sum.Employees++
	}

	for _, p := range fx.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return sum, fmt.Errorf("parse price of %s: %w", p.ID, err)
		}
		err = w.UpsertProduct(ctx, domain.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       domain.RoundMoney(price),
			Stock:       p.Stock,
			Active:      !p.Inactive,
		})
		if err != nil {
			return sum, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		sum.Products++
	}

	return sum, nil
}
