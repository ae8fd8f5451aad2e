package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ikkim/marketplace-backend/config"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/ikkim/marketplace-backend/pkg/util"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	sampleSellerEmail    = "seller@marketplace.local"
	sampleSellerPassword = "seller1234"
	defaultAdminPassword = "admin1234"
	batchSize            = 500
)

// product sheet columns
const (
	colName = iota
	colDescription
	colPrice
	colInitialPrice
	colMinOrder
	colStock
	colColors
	colImageURL
	colClearance
	colCategory
	columnCount
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	adminPassword := cfg.Admin.Password
	if adminPassword == "" {
		adminPassword = defaultAdminPassword
	}
	admin, err := db.SeedAdmin(db.GetDB(), cfg.Admin.Email, adminPassword)
	if err != nil {
		log.Fatal("Failed to seed admin:", err)
	}
	fmt.Printf("Admin: %s\n", admin.Email)

	seller, err := seedSampleSeller(db.GetDB())
	if err != nil {
		log.Fatal("Failed to seed sample seller:", err)
	}
	fmt.Printf("Sample seller: %s (seller id %d)\n", sampleSellerEmail, seller.ID)

	if len(os.Args) < 2 {
		fmt.Println("No product sheet given, skipping product import.")
		fmt.Println("Usage: go run cmd/seed/main.go [products.xlsx]")
		return
	}

	filePath := os.Args[1]
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}
	for i := range products {
		sellerID := seller.ID
		products[i].SellerID = &sellerID
		products[i].Approved = true
	}

	productRepo := repository.NewProductRepository(db.GetDB())
	categoryRepo := repository.NewCategoryRepository(db.GetDB())
	categories := service.NewCategoryService(categoryRepo, service.NewProductService(productRepo, categoryRepo))
	if err := assignCategories(categories, products); err != nil {
		log.Fatal("Failed to create categories:", err)
	}

	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

// seedSampleSeller creates an approved seller account once
func seedSampleSeller(database *gorm.DB) (*model.Seller, error) {
	userRepo := repository.NewUserRepository(database)
	sellerRepo := repository.NewSellerRepository(database)

	user, err := userRepo.FindByEmail(sampleSellerEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, hashErr := util.HashPassword(sampleSellerPassword)
		if hashErr != nil {
			return nil, hashErr
		}
		user = &model.User{
			Email:        sampleSellerEmail,
			PasswordHash: hash,
			Name:         "Sample Seller",
			Role:         model.RoleSeller,
		}
		if err := userRepo.Create(user); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	seller, err := sellerRepo.FindByUserID(user.ID)
	if err == nil {
		return seller, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	seller = &model.Seller{
		UserID:       user.ID,
		BusinessName: "Sample Goods",
		Approved:     true,
		ApprovedAt:   &now,
	}
	if err := sellerRepo.Create(seller); err != nil {
		return nil, err
	}
	return seller, nil
}

// assignCategories replaces the category name read from the sheet with the
// id of the category of that name, creating it on first use.
func assignCategories(categories service.CategoryService, products []model.Product) error {
	ids := make(map[string]uint)
	for i := range products {
		if products[i].Category == nil {
			continue
		}
		name := products[i].Category.Name
		products[i].Category = nil

		slug := model.Slugify(name)
		id, ok := ids[slug]
		if !ok {
			category, err := categories.GetCategory(slug)
			if errors.Is(err, service.ErrCategoryNotFound) {
				category, err = categories.CreateCategory(service.CategoryInput{Name: name})
			}
			if err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
			id = category.ID
			ids[slug] = id
		}
		products[i].CategoryID = &id
	}
	return nil
}

// readProductsFromXLSX reads the first sheet. Row one is the header:
// name, description, price, initial price, min order, stock, colors, image url, clearance, category.
func readProductsFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}

		product, ok := parseProductRow(row)
		if !ok {
			skipped++
			continue
		}
		products = append(products, product)
	}

	fmt.Printf("  Total rows: %d\n", len(rows)-1)
	fmt.Printf("  Valid products: %d\n", len(products))
	fmt.Printf("  Skipped rows: %d\n", skipped)
	return products, nil
}

func parseProductRow(row []string) (model.Product, bool) {
	cells := make([]string, columnCount)
	for i := 0; i < columnCount && i < len(row); i++ {
		cells[i] = strings.TrimSpace(row[i])
	}

	if cells[colName] == "" {
		return model.Product{}, false
	}
	price, err := decimal.NewFromString(cells[colPrice])
	if err != nil || !price.IsPositive() {
		return model.Product{}, false
	}

	product := model.Product{
		Name:        cells[colName],
		Description: cells[colDescription],
		BasePrice:   price,
		MinOrder:    1,
		ImageURL:    cells[colImageURL],
		IsClearance: strings.EqualFold(cells[colClearance], "yes") || strings.EqualFold(cells[colClearance], "true"),
	}
	if initial, err := decimal.NewFromString(cells[colInitialPrice]); err == nil && initial.GreaterThan(price) {
		product.InitialPrice = &initial
	}
	if minOrder, err := strconv.Atoi(cells[colMinOrder]); err == nil && minOrder > 0 {
		product.MinOrder = minOrder
	}
	if stock, err := strconv.Atoi(cells[colStock]); err == nil && stock >= 0 {
		product.StockQuantity = stock
	}
	for _, color := range strings.Split(cells[colColors], ",") {
		if color = strings.TrimSpace(color); color != "" {
			product.ColorOptions = append(product.ColorOptions, color)
		}
	}
	if model.Slugify(cells[colCategory]) != "" {
		product.Category = &model.Category{Name: cells[colCategory]}
	}
	return product, true
}
