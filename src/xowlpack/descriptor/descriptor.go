// Package descriptor renders the JSON descriptors and plaintext manifests shipped
// with addons, marketplaces, platform distributions and products.
package descriptor

import (
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the descriptor package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// DefaultModelVersion is the descriptor model version written into addon and marketplace descriptors
const DefaultModelVersion = "1.0"

// ProductType is the type marker of product definitions
const ProductType = "org.xowl.infra.utils.product.Product"

// Config holds the settings shared by every descriptor rendered by a Generator
type Config struct {
	// ModelVersion is written as modelVersion in addon and marketplace descriptors
	ModelVersion string
}

// DefaultConfig returns the default generator configuration
func DefaultConfig() Config {
	return Config{ModelVersion: DefaultModelVersion}
}

// Kind names a descriptor document type
type Kind string

const (
	KindAddon             Kind = "addon"
	KindPlatform          Kind = "platform"
	KindMarketplace       Kind = "marketplace"
	KindProduct           Kind = "product"
	KindProductDefinition Kind = "product-definition"
)

// Document is a renderable descriptor
type Document interface {
	Kind() Kind
}

// Version is the version block of a descriptor
type Version struct {
	Number         string `json:"number"`
	ScmTag         string `json:"scmTag"`
	BuildUser      string `json:"buildUser"`
	BuildTag       string `json:"buildTag"`
	BuildTimestamp string `json:"buildTimestamp"`
}

// BundleRef references a bundle by its coordinate
type BundleRef struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Version    string `json:"version"`
}

// BundleRefOf returns the reference for a coordinate
func BundleRefOf(c artifact.Coordinate) BundleRef {
	return BundleRef{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Version: c.Version}
}

// Organization is the vendor of a package
type Organization struct {
	Name string
	URL  string
}

// Build carries the build parameters recorded in descriptors and manifests
type Build struct {
	ScmTag    string
	User      string
	Tag       string
	Timestamp string
}

// Fields holds everything a descriptor can be rendered from
type Fields struct {
	GroupID      string
	ArtifactID   string
	Version      string
	Name         string
	Description  string
	URL          string
	Organization Organization
	License      License
	Build        Build
	Icon         Icon
	Pricing      string
	Bundles      []BundleRef
	Tags         []string
}

// Identifier returns groupId.artifactId-version
func (f Fields) Identifier() string {
	return f.GroupID + "." + f.ArtifactID + "-" + f.Version
}

// ProductIdentifier returns groupId.artifactId
func (f Fields) ProductIdentifier() string {
	return f.GroupID + "." + f.ArtifactID
}

// Self returns the reference to the project itself
func (f Fields) Self() BundleRef {
	return BundleRef{GroupID: f.GroupID, ArtifactID: f.ArtifactID, Version: f.Version}
}

func (f Fields) version() Version {
	return Version{
		Number:         f.Version,
		ScmTag:         f.Build.ScmTag,
		BuildUser:      f.Build.User,
		BuildTag:       f.Build.Tag,
		BuildTimestamp: f.Build.Timestamp,
	}
}

func (f Fields) copyright() string {
	return "Copyright (c) " + f.Organization.Name
}

// Addon is the descriptor of an addon package
type Addon struct {
	ModelVersion string      `json:"modelVersion"`
	Identifier   string      `json:"identifier"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Version      Version     `json:"version"`
	Copyright    string      `json:"copyright"`
	IconName     string      `json:"iconName"`
	IconContent  string      `json:"iconContent"`
	Vendor       string      `json:"vendor"`
	VendorLink   string      `json:"vendorLink"`
	Link         string      `json:"link"`
	License      License     `json:"license"`
	Pricing      string      `json:"pricing"`
	Bundles      []BundleRef `json:"bundles"`
	Tags         []string    `json:"tags"`
}

func (Addon) Kind() Kind { return KindAddon }

// Platform is the descriptor of a platform distribution
type Platform struct {
	Identifier  string  `json:"identifier"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     Version `json:"version"`
	Copyright   string  `json:"copyright"`
	IconName    string  `json:"iconName"`
	IconContent string  `json:"iconContent"`
	Vendor      string  `json:"vendor"`
	VendorLink  string  `json:"vendorLink"`
	Link        string  `json:"link"`
	License     License `json:"license"`
}

func (Platform) Kind() Kind { return KindPlatform }

// Marketplace is the descriptor of a marketplace package
type Marketplace struct {
	ModelVersion string   `json:"modelVersion"`
	Addons       []string `json:"addons"`
}

func (Marketplace) Kind() Kind { return KindMarketplace }

// Product is the descriptor shipped inside a product package
type Product struct {
	Identifier  string      `json:"identifier"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Copyright   string      `json:"copyright"`
	Icon        string      `json:"icon"`
	Vendor      string      `json:"vendor"`
	VendorLink  string      `json:"vendorLink"`
	Link        string      `json:"link"`
	License     License     `json:"license"`
	Bundles     []BundleRef `json:"bundles"`
}

func (Product) Kind() Kind { return KindProduct }

// ProductDefinition is the .product file describing a product
type ProductDefinition struct {
	Type        string  `json:"type"`
	Identifier  string  `json:"identifier"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     Version `json:"version"`
	Copyright   string  `json:"copyright"`
	Vendor      string  `json:"vendor"`
	VendorLink  string  `json:"vendorLink"`
	Link        string  `json:"link"`
	License     License `json:"license"`
}

func (ProductDefinition) Kind() Kind { return KindProductDefinition }

// Generator builds descriptors from project fields
type Generator struct {
	config Config
}

// NewGenerator creates a generator. An empty model version takes DefaultModelVersion.
func NewGenerator(cfg Config) *Generator {
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = DefaultModelVersion
	}
	return &Generator{config: cfg}
}

// Config returns the generator configuration
func (g *Generator) Config() Config {
	return g.config
}

// Addon builds an addon descriptor. Bundles keep the order of f.Bundles.
func (g *Generator) Addon(f Fields) Addon {
	return Addon{
		ModelVersion: g.config.ModelVersion,
		Identifier:   f.Identifier(),
		Name:         f.Name,
		Description:  f.Description,
		Version:      f.version(),
		Copyright:    f.copyright(),
		IconName:     f.Icon.Name,
		IconContent:  f.Icon.Content,
		Vendor:       f.Organization.Name,
		VendorLink:   f.Organization.URL,
		Link:         f.URL,
		License:      f.License,
		Pricing:      f.Pricing,
		Bundles:      nonNil(f.Bundles),
		Tags:         nonNil(f.Tags),
	}
}

// Platform builds a platform distribution descriptor
func (g *Generator) Platform(f Fields) Platform {
	return Platform{
		Identifier:  f.Identifier(),
		Name:        f.Name,
		Description: f.Description,
		Version:     f.version(),
		Copyright:   f.copyright(),
		IconName:    f.Icon.Name,
		IconContent: f.Icon.Content,
		Vendor:      f.Organization.Name,
		VendorLink:  f.Organization.URL,
		Link:        f.URL,
		License:     f.License,
	}
}

// Marketplace builds a marketplace descriptor listing addons as groupId.artifactId-version
func (g *Generator) Marketplace(addons []artifact.Coordinate) Marketplace {
	ids := make([]string, 0, len(addons))
	for _, c := range addons {
		ids = append(ids, c.Identifier())
	}
	return Marketplace{ModelVersion: g.config.ModelVersion, Addons: ids}
}

// Product builds the product package descriptor. The product itself is
// appended after f.Bundles.
func (g *Generator) Product(f Fields) Product {
	bundles := make([]BundleRef, 0, len(f.Bundles)+1)
	bundles = append(bundles, f.Bundles...)
	bundles = append(bundles, f.Self())
	return Product{
		Identifier:  f.ProductIdentifier(),
		Name:        f.Name,
		Description: f.Description,
		Version:     f.Version,
		Copyright:   f.copyright(),
		Icon:        f.Icon.Content,
		Vendor:      f.Organization.Name,
		VendorLink:  f.Organization.URL,
		Link:        f.URL,
		License:     f.License,
		Bundles:     bundles,
	}
}

// ProductDefinition builds the .product definition
func (g *Generator) ProductDefinition(f Fields) ProductDefinition {
	return ProductDefinition{
		Type:        ProductType,
		Identifier:  f.ProductIdentifier(),
		Name:        f.Name,
		Description: f.Description,
		Version:     f.version(),
		Copyright:   f.copyright(),
		Vendor:      f.Organization.Name,
		VendorLink:  f.Organization.URL,
		Link:        f.URL,
		License:     f.License,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
