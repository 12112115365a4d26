package docstore

import (
	"context"
	"time"

	"alforge/models"
	"alforge/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	if e.Version == 0 {
		e.Version = 1
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	_, err := s.equipment.InsertOne(ctx, e)
	return translate(err, "equipment "+e.Code)
}

func (s *Store) GetEquipment(ctx context.Context, code string) (*models.Equipment, error) {
	var e models.Equipment
	if err := s.equipment.FindOne(ctx, bson.M{"_id": code}).Decode(&e); err != nil {
		return nil, translate(err, "equipment "+code)
	}
	return &e, nil
}

func equipmentFilter(q store.EquipmentQuery, reserved []string) bson.M {
	f := bson.M{}
	if q.UsageCode != "" {
		f["usage_code"] = q.UsageCode
	}
	if q.TypeCode != "" {
		f["type_code"] = q.TypeCode
	}
	if len(q.Statuses) > 0 {
		f["status"] = bson.M{"$in": q.Statuses}
	}
	if len(q.ExcludeOperational) > 0 {
		f["operational"] = bson.M{"$nin": q.ExcludeOperational}
	}
	nin := append(append([]string{}, q.ExcludeCodes...), reserved...)
	if len(nin) > 0 {
		f["_id"] = bson.M{"$nin": nin}
	}
	return f
}

func equipmentSort(q store.EquipmentQuery) bson.D {
	if q.ByLastRequisitioned {
		// null 在升序中排最前：从未借出的优先
		return bson.D{{Key: "last_requisitioned_at", Value: 1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "_id", Value: 1}}
}

func (s *Store) FindEquipment(ctx context.Context, q store.EquipmentQuery) ([]models.Equipment, error) {
	var reserved []string
	if q.ExcludeReserved {
		vals, err := s.allocations.Distinct(ctx, "equipment_code", bson.M{"active": true})
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if code, ok := v.(string); ok {
				reserved = append(reserved, code)
			}
		}
	}

	opts := options.Find().SetSort(equipmentSort(q))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := s.equipment.Find(ctx, equipmentFilter(q, reserved), opts)
	if err != nil {
		return nil, err
	}
	out := []models.Equipment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) EquipmentCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	cur, err := s.equipment.Find(ctx,
		bson.M{"_id": bson.M{"$regex": "^" + prefix}},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Code string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	return codes, nil
}

// UpdateEquipment 乐观锁：只有 version 未变时才写入，并把 version +1
func (s *Store) UpdateEquipment(ctx context.Context, code string, version int64, fields models.Fields) error {
	res, err := s.equipment.UpdateOne(ctx,
		bson.M{"_id": code, "version": version},
		bson.M{"$set": setDoc(fields, time.Now().UTC()), "$inc": bson.M{"version": 1}})
	if err != nil {
		return translate(err, "equipment "+code)
	}
	if res.MatchedCount == 0 {
		return missOrStale(ctx, s.equipment, code, "equipment "+code)
	}
	return nil
}
