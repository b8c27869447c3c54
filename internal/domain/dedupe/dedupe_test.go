package dedupe_test

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/okian/riskwatch/internal/domain/dedupe"
	"github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	convey.Convey("Given a bounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		convey.Convey("When recording an id twice", func() {
			first := d.SeenAndRecord(ctx, "batch-1")
			second := d.SeenAndRecord(ctx, "batch-1")

			convey.Convey("Then only the second call reports it as seen", func() {
				convey.So(first, convey.ShouldBeFalse)
				convey.So(second, convey.ShouldBeTrue)
				convey.So(d.Size(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When exceeding the bound", func() {
			for i := 0; i < 4; i++ {
				d.SeenAndRecord(ctx, "b-"+strconv.Itoa(i))
			}

			convey.Convey("Then the oldest id is evicted", func() {
				convey.So(d.Size(), convey.ShouldEqual, 3)
				convey.So(d.SeenAndRecord(ctx, "b-3"), convey.ShouldBeTrue)
				convey.So(d.SeenAndRecord(ctx, "b-0"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When unrecording an id", func() {
			d.SeenAndRecord(ctx, "retry-me")
			d.Unrecord(ctx, "retry-me")
			d.Unrecord(ctx, "never-seen")

			convey.Convey("Then it can be recorded again", func() {
				convey.So(d.Size(), convey.ShouldEqual, 0)
				convey.So(d.SeenAndRecord(ctx, "retry-me"), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given an unbounded deduper under concurrent use", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					if !d.SeenAndRecord(ctx, "id-"+strconv.Itoa(i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		convey.Convey("Then each id is newly recorded exactly once", func() {
			convey.So(fresh, convey.ShouldEqual, 500)
			convey.So(d.Size(), convey.ShouldEqual, 500)
		})
	})
}
