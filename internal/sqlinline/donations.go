package sqlinline

const QInsertDonation = `--sql 143b5b97-789c-4e45-8ad2-380f6157b14d
insert into donations(
  id,
  external_id,
  platform,
  donor,
  amount,
  message,
  matched_identity,
  match_method,
  received_at
) values (
  $1::text,
  $2::text,
  $3::text,
  $4::text,
  $5::numeric,
  $6::text,
  $7::text,
  $8::text,
  $9::timestamptz
);
`

const QTrimDonations = `--sql b8af6f0a-bca9-4025-8b4e-3b29fef7a409
delete from donations
where platform = $1::text
  and seq < (
    select coalesce(min(seq), 0)
    from (
      select seq
      from donations
      where platform = $1::text
      order by seq desc
      limit $2::int
    ) kept
  );
`

const QListDonations = `--sql 2b395338-8472-45f7-992c-5017895b727b
select
  id,
  external_id,
  platform,
  donor,
  amount::text,
  message,
  matched_identity,
  match_method,
  received_at
from donations
where ($1::text = '' or platform = $1::text)
  and ($2::text = '' or lower(matched_identity) = lower($2::text))
  and ($3::timestamptz is null or received_at >= $3::timestamptz)
order by received_at desc, seq desc
limit $4::int;
`
