package calendar

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Calendar", func() {
	var cal *Calendar

	BeforeEach(func() {
		cal = MustNew(DefaultSpec())
	})

	Context("construction", func() {
		It("should derive year lengths", func() {
			Expect(cal.DaysPerYear()).To(Equal(360))
			Expect(cal.HoursPerYear()).To(Equal(int64(8640)))
			Expect(cal.MonthsPerYear()).To(Equal(12))
			Expect(cal.HoursPerDay()).To(Equal(24))
		})

		It("should reject non-positive hours per day", func() {
			spec := DefaultSpec()
			spec.HoursPerDay = 0

			_, err := New(spec)
			Expect(err).To(MatchError(ErrInvalidHoursPerDay))
		})

		It("should reject non-positive months per year", func() {
			_, err := New(Spec{HoursPerDay: 24})
			Expect(err).To(MatchError(ErrInvalidMonthsPerYear))
		})

		It("should reject a month table of the wrong length", func() {
			spec := DefaultSpec()
			spec.MonthsPerYear = 13

			_, err := New(spec)
			Expect(err).To(MatchError(ErrMonthTableLength))
		})

		It("should reject zero-length months", func() {
			spec := DefaultSpec()
			spec.DaysInMonth[3] = 0

			_, err := New(spec)
			Expect(err).To(MatchError(ErrInvalidMonthLength))
		})

		It("should not share the month table with the spec", func() {
			spec := DefaultSpec()
			c := MustNew(spec)
			spec.DaysInMonth[0] = 1

			Expect(c.DaysInMonth(1)).To(Equal(30))
			Expect(c.Spec().DaysInMonth[0]).To(Equal(30))
		})
	})

	Context("conversion", func() {
		It("should convert the epoch to zero", func() {
			Expect(cal.TotalHours(Date(0, 1, 1, 0))).To(Equal(int64(0)))
			Expect(cal.FromTotalHours(0)).To(Equal(Date(0, 1, 1, 0)))
		})

		It("should convert a known date", func() {
			t := Date(1444, 11, 11, 5)
			expected := int64(1444)*8640 + int64(300+10)*24 + 5

			Expect(cal.TotalHours(t)).To(Equal(expected))
		})

		It("should round trip every hour of a year", func() {
			start := cal.TotalHours(Date(1444, 1, 1, 0))
			for h := start; h < start+cal.HoursPerYear(); h++ {
				t := cal.FromTotalHours(h)
				Expect(cal.Valid(t)).To(BeTrue())
				Expect(cal.TotalHours(t)).To(Equal(h))
			}
		})

		It("should round trip dates before the epoch", func() {
			for _, t := range []GameTime{
				Date(-1, 12, 30, 23),
				Date(-1, 1, 1, 0),
				Date(-400, 6, 15, 12),
			} {
				Expect(cal.FromTotalHours(cal.TotalHours(t))).To(Equal(t))
			}

			Expect(cal.FromTotalHours(-1)).To(Equal(Date(-1, 12, 30, 23)))
		})

		It("should round trip with uneven months", func() {
			c := MustNew(Spec{
				HoursPerDay:   10,
				MonthsPerYear: 4,
				DaysInMonth:   []int{31, 28, 1, 7},
			})

			start := c.TotalHours(Date(7, 1, 1, 0))
			for h := start - c.HoursPerYear(); h < start+c.HoursPerYear(); h++ {
				t := c.FromTotalHours(h)
				Expect(c.Valid(t)).To(BeTrue())
				Expect(c.TotalHours(t)).To(Equal(h))
			}

			Expect(c.FromTotalHours(c.TotalHours(Date(7, 3, 1, 9)) + 1)).
				To(Equal(Date(7, 4, 1, 0)))
		})

		It("should roll a 30-day month over", func() {
			t := cal.AddHours(Date(1444, 11, 11, 0), 30*24)
			Expect(t).To(Equal(Date(1444, 12, 11, 0)))
		})

		It("should roll the year over", func() {
			t := cal.AddHours(Date(1444, 12, 30, 23), 1)
			Expect(t).To(Equal(Date(1445, 1, 1, 0)))
		})
	})

	Context("clamping", func() {
		It("should saturate the month", func() {
			Expect(cal.Clamp(1444, 0, 1, 0)).To(Equal(Date(1444, 1, 1, 0)))
			Expect(cal.Clamp(1444, 13, 1, 0)).To(Equal(Date(1444, 12, 1, 0)))
		})

		It("should saturate the day against the month length", func() {
			c := MustNew(Spec{
				HoursPerDay:   24,
				MonthsPerYear: 2,
				DaysInMonth:   []int{31, 28},
			})

			Expect(c.Clamp(1, 2, 31, 0)).To(Equal(Date(1, 2, 28, 0)))
			Expect(c.Clamp(1, 1, -3, 0)).To(Equal(Date(1, 1, 1, 0)))
		})

		It("should saturate the hour", func() {
			Expect(cal.Clamp(1444, 1, 1, 24)).To(Equal(Date(1444, 1, 1, 23)))
			Expect(cal.Clamp(1444, 1, 1, -1)).To(Equal(Date(1444, 1, 1, 0)))
		})

		It("should saturate the month lookup", func() {
			Expect(cal.DaysInMonth(99)).To(Equal(30))
		})
	})

	Context("derived indices", func() {
		It("should compute day of year", func() {
			Expect(cal.DayOfYear(Date(1444, 1, 1, 0))).To(Equal(0))
			Expect(cal.DayOfYear(Date(1444, 12, 30, 0))).To(Equal(359))
		})

		It("should compute day and month numbers", func() {
			Expect(cal.DayNumber(Date(1, 1, 1, 23))).To(Equal(int64(360)))
			Expect(cal.DayNumber(Date(-1, 12, 30, 0))).To(Equal(int64(-1)))
			Expect(cal.MonthNumber(Date(2, 3, 1, 0))).To(Equal(int64(26)))
		})

		It("should compare by total hours", func() {
			Expect(cal.Compare(Date(1444, 11, 11, 0), Date(1444, 11, 10, 23))).
				To(Equal(1))
			Expect(cal.Compare(Date(1444, 1, 1, 0), Date(1445, 1, 1, 0))).
				To(Equal(-1))
			Expect(cal.Compare(Date(1444, 1, 1, 0), Date(1444, 1, 1, 0))).
				To(Equal(0))
		})
	})

	Context("text form", func() {
		It("should format and parse", func() {
			t := Date(1444, 11, 11, 7)
			Expect(t.String()).To(Equal("1444-11-11-07"))

			parsed, err := cal.Parse(t.String())
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(t))
		})

		It("should clamp parsed values", func() {
			parsed, err := cal.Parse("1444-13-31-30")
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(Date(1444, 12, 30, 23)))
		})

		It("should reject malformed strings", func() {
			_, err := cal.Parse("eleventh of november")
			Expect(err).To(MatchError(ErrBadFormat))
		})
	})

	Context("loading", func() {
		It("should load a spec from YAML", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "calendar.yaml")
			content := "hours_per_day: 10\n" +
				"months_per_year: 2\n" +
				"days_in_month: [20, 25]\n"
			Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

			spec, err := LoadSpec(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(spec).To(Equal(Spec{
				HoursPerDay:   10,
				MonthsPerYear: 2,
				DaysInMonth:   []int{20, 25},
			}))
		})

		It("should report a missing file", func() {
			_, err := LoadSpec("/nonexistent/calendar.yaml")
			Expect(err).To(HaveOccurred())
		})
	})
})
