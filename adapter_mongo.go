package safeq

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BuildMongoFilter renders a filter tree into a MongoDB filter document.
// The same whitelist soft-skip and arity validation apply as in SQL
// rendering; substring operators become quoted regexes so user input never
// carries regex meaning.
func BuildMongoFilter(g FilterGroup, whitelist *FieldWhitelist) (bson.M, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	b := NewFilterBuilder(whitelist)
	return b.mongoGroup(g), nil
}

func (b *FilterBuilder) mongoGroup(g FilterGroup) bson.M {
	var parts []bson.M
	for _, it := range g.Items {
		if !b.renderable(it) {
			continue
		}
		if it.Cond != nil {
			if m := b.mongoLeaf(*it.Cond); len(m) > 0 {
				parts = append(parts, m)
			}
		} else if it.Group != nil {
			if m := b.mongoGroup(*it.Group); len(m) > 0 {
				parts = append(parts, m)
			}
		}
	}
	if len(parts) == 0 {
		return bson.M{}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	op := "$and"
	if g.Logic == LogicOr {
		op = "$or"
	}
	return bson.M{op: parts}
}

func (b *FilterBuilder) mongoLeaf(f Filter) bson.M {
	field := normalizeFieldName(b.naming, f.Field)
	switch f.Op {
	case OperatorEq:
		return bson.M{field: bson.M{"$eq": f.Value.scalar()}}
	case OperatorNeq:
		return bson.M{field: bson.M{"$ne": f.Value.scalar()}}
	case OperatorLt:
		return bson.M{field: bson.M{"$lt": f.Value.scalar()}}
	case OperatorLte:
		return bson.M{field: bson.M{"$lte": f.Value.scalar()}}
	case OperatorGt:
		return bson.M{field: bson.M{"$gt": f.Value.scalar()}}
	case OperatorGte:
		return bson.M{field: bson.M{"$gte": f.Value.scalar()}}
	case OperatorLike:
		return bson.M{field: bson.M{"$regex": regexp.QuoteMeta(f.Value.stringVal())}}
	case OperatorStartsWith:
		return bson.M{field: bson.M{"$regex": "^" + regexp.QuoteMeta(f.Value.stringVal())}}
	case OperatorEndsWith:
		return bson.M{field: bson.M{"$regex": regexp.QuoteMeta(f.Value.stringVal()) + "$"}}
	case OperatorIn:
		// an empty $in naturally matches nothing, mirroring SQL's 1=0
		return bson.M{field: bson.M{"$in": f.Value.arr}}
	case OperatorNotIn:
		return bson.M{field: bson.M{"$nin": f.Value.arr}}
	case OperatorBetween:
		return bson.M{field: bson.M{"$gte": f.Value.lo, "$lte": f.Value.hi}}
	case OperatorNotBetween:
		return bson.M{field: bson.M{"$not": bson.M{"$gte": f.Value.lo, "$lte": f.Value.hi}}}
	case OperatorIsNull:
		return bson.M{field: bson.M{"$eq": nil}}
	case OperatorIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}
	default:
		return bson.M{}
	}
}

// MongoFindOptions converts page/perPage and an optional sort into
// FindOptions, applying the same pagination clamp as Paginate. A sort field
// failing the whitelist is dropped.
func MongoFindOptions(page, perPage int, sortField string, desc bool, whitelist *FieldWhitelist) *options.FindOptions {
	if perPage < 1 {
		perPage = 1
	} else if perPage > 100 {
		perPage = 100
	}
	if page < 1 {
		page = 1
	}
	opts := options.Find()
	opts.SetLimit(int64(perPage))
	opts.SetSkip(int64((page - 1) * perPage))
	if sortField != "" && (whitelist == nil || whitelist.IsAllowed(sortField)) {
		order := 1
		if desc {
			order = -1
		}
		opts.SetSort(bson.D{{Key: sortField, Value: order}})
	}
	return opts
}
