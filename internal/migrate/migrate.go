package migrate

import (
	"context"

	"storefront-order-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto для gen_random_uuid()
	CreateChecks           bool // CHECK-constraint для целостности
	CreateIndexes          bool // индексы и UNIQUE
	CreateFKsViaSQL        bool // FK через SQL (поверх GORM-constraint)
	CreateUpdatedAtTrigger bool // триггер обновления updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

func run(ctx context.Context, db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.WithContext(ctx).Exec(s.sql).Error; err != nil {
			log.Error("migration step failed", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func MigrateOrderDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("starting order database migration")

	if opt.CreateExtensions {
		log.Info("creating postgres extensions")
		if err := run(ctx, db, log, []step{
			{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},
		}); err != nil {
			return err
		}
	}

	log.Info("creating tables orders, order_items, products")
	if err := db.WithContext(ctx).AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Product{}); err != nil {
		log.Error("failed to auto-migrate tables", zap.Error(err))
		return err
	}

	if opt.CreateUpdatedAtTrigger {
		log.Info("creating updated_at triggers")
		if err := run(ctx, db, log, []step{
			{"set_updated_at", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;
`},
			{"trg_orders_updated", `
DROP TRIGGER IF EXISTS trg_orders_updated ON orders;
CREATE TRIGGER trg_orders_updated
BEFORE UPDATE ON orders
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`},
			{"trg_products_updated", `
DROP TRIGGER IF EXISTS trg_products_updated ON products;
CREATE TRIGGER trg_products_updated
BEFORE UPDATE ON products
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateChecks {
		log.Info("creating check constraints")
		if err := run(ctx, db, log, []step{
			// статусы храним текстом, поэтому ограничиваем допустимые значения
			{"chk_orders_status_allowed", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_status_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_status_allowed
  CHECK (status IN ('pending','confirmed','processing','shipped','delivered','cancelled','refunded'));
`},
			{"chk_orders_payment_status_allowed", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_payment_status_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_payment_status_allowed
  CHECK (payment_status IN ('pending','paid','failed','refunded'));
`},
			{"chk_orders_amounts_non_negative", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_amounts_non_negative;
ALTER TABLE orders ADD CONSTRAINT chk_orders_amounts_non_negative
  CHECK (subtotal >= 0 AND shipping_cost >= 0 AND tax_amount >= 0 AND discount_amount >= 0 AND total_amount >= 0);
`},
			// total = subtotal + shipping + tax - discount
			{"chk_orders_total_consistent", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_total_consistent;
ALTER TABLE orders ADD CONSTRAINT chk_orders_total_consistent
  CHECK (abs(total_amount - (subtotal + shipping_cost + tax_amount - discount_amount)) <= 0.01);
`},
			{"chk_orders_delivered_after_shipped", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_delivered_after_shipped;
ALTER TABLE orders ADD CONSTRAINT chk_orders_delivered_after_shipped
  CHECK (delivered_at IS NULL OR shipped_at IS NOT NULL);
`},
			{"chk_orders_shipping_address", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_shipping_address;
ALTER TABLE orders ADD CONSTRAINT chk_orders_shipping_address
  CHECK (shipping_line1 <> '' AND shipping_city <> '' AND shipping_postal_code <> '' AND shipping_country <> '');
`},
			{"chk_order_items_quantity_gt_zero", `
ALTER TABLE order_items DROP CONSTRAINT IF EXISTS chk_order_items_quantity_gt_zero;
ALTER TABLE order_items ADD CONSTRAINT chk_order_items_quantity_gt_zero
  CHECK (quantity > 0);
`},
			{"chk_order_items_prices_non_negative", `
ALTER TABLE order_items DROP CONSTRAINT IF EXISTS chk_order_items_prices_non_negative;
ALTER TABLE order_items ADD CONSTRAINT chk_order_items_prices_non_negative
  CHECK (unit_price >= 0 AND total_price >= 0);
`},
			{"chk_products_price_non_negative", `
ALTER TABLE products DROP CONSTRAINT IF EXISTS chk_products_price_non_negative;
ALTER TABLE products ADD CONSTRAINT chk_products_price_non_negative
  CHECK (price >= 0);
`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateIndexes {
		log.Info("creating indexes")
		if err := run(ctx, db, log, []step{
			{"ux_orders_order_number", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number ON orders (order_number);
`},
			{"ix_orders_user_created", `
CREATE INDEX IF NOT EXISTS ix_orders_user_created ON orders (user_id, created_at DESC);
`},
			{"ix_orders_status_created", `
CREATE INDEX IF NOT EXISTS ix_orders_status_created ON orders (status, created_at DESC);
`},
			{"ix_orders_customer_email_lower", `
CREATE INDEX IF NOT EXISTS ix_orders_customer_email_lower ON orders (lower(customer_email));
`},
		}); err != nil {
			return err
		}
	}

	if opt.CreateFKsViaSQL {
		log.Info("creating foreign keys")
		// product_id намеренно без FK: позиция это снимок, каталог может меняться
		if err := run(ctx, db, log, []step{
			{"fk_order_items_order", `
ALTER TABLE order_items
  DROP CONSTRAINT IF EXISTS fk_order_items_order,
  ADD CONSTRAINT fk_order_items_order
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE;
`},
		}); err != nil {
			return err
		}
	}

	log.Info("order database migration completed")
	return nil
}
