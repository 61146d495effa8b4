package sqlinline

const QListRegistrations = `--sql 1420ba4d-0393-42c0-8961-467b17b7aca2
select code, identity
from registrations
order by seq asc;
`

const QSelectIdentityByCode = `--sql 2b2e7b0a-b204-49db-bd3b-a5b03f0d7ea3
select identity
from registrations
where code = $1::text
limit 1;
`

const QSelectCodeByIdentity = `--sql 5de882c4-d949-4909-9f0a-16946d48bd0c
select code, identity
from registrations
where lower(identity) = lower($1::text)
limit 1;
`

const QInsertRegistration = `--sql 085b5982-7502-4a2f-b631-8a1a908b904d
insert into registrations(code, identity, created_at)
values ($1::text, $2::text, now())
on conflict do nothing
returning code, identity;
`

const QListDisplayNames = `--sql 9eb042da-0dd0-4756-9328-1c32b7a74747
select identity, display_name
from display_names
order by seq asc;
`

const QSelectDisplayName = `--sql b40af330-53a7-4497-bddf-9f0536b4e23d
select display_name
from display_names
where identity = $1::text
limit 1;
`

const QUpsertDisplayName = `--sql 7b11d097-401a-49d1-b50c-a8df69185b1d
insert into display_names(identity, display_name, updated_at)
values ($1::text, $2::text, now())
on conflict (identity) do update
set display_name = excluded.display_name,
    updated_at = now();
`
