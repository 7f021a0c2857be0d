package migrations

import (
	"github.com/pocketbase/pocketbase/core"
)

func init() {
	core.AppMigrations.Register(func(app core.App) error {
		identities := core.NewBaseCollection("identities")
		identities.Fields.Add(
			&core.TextField{Name: "code", Required: true, Max: 64},
			&core.TextField{Name: "first_name", Required: true, Max: 100},
			&core.TextField{Name: "last_name", Required: true, Max: 100},
			&core.TextField{Name: "ministry", Max: 100},
			&core.TextField{Name: "network", Max: 100},
			&core.EmailField{Name: "email"},
			&core.TextField{Name: "phone", Max: 32},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)
		identities.AddIndex("ux_identities_code", true, "code", "")
		if err := app.Save(identities); err != nil {
			return err
		}

		attendance := core.NewBaseCollection("attendance")
		attendance.Fields.Add(
			&core.RelationField{
				Name:          "identity",
				CollectionId:  identities.Id,
				Required:      true,
				MaxSelect:     1,
				CascadeDelete: true,
			},
			&core.TextField{Name: "service_day", Required: true, Pattern: `^\d{4}-\d{2}-\d{2}$`},
			&core.DateField{Name: "recorded_at", Required: true},
			&core.TextField{Name: "station", Max: 100},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		// One check-in per identity per service day, enforced by the store
		attendance.AddIndex("ux_attendance_identity_day", true, "identity, service_day", "")
		attendance.AddIndex("idx_attendance_service_day", false, "service_day", "")

		return app.Save(attendance)
	}, func(app core.App) error {
		for _, name := range []string{"attendance", "identities"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
