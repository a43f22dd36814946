package repositories

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/procendp/stenodesk/internal/config"
	"github.com/procendp/stenodesk/internal/models"
)

var (
	DB   *gorm.DB
	Data *Store
)

func ConnectDatabase() {
	dsn := config.Envs.DB_URL
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	// Run migrations
	err = db.AutoMigrate(
		&models.Request{},
		&models.File{},
		&models.StatusChangeLog{},
		&models.SendLog{},
		&models.Template{},
		&models.StaffUser{},
	)
	if err != nil {
		log.Fatal("Migration failed:", err)
	}
	DB = db
	Data = NewStore(db)
	log.Println("Successfully connected to database")
}
